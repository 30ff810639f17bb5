package installgen

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

var target = Target{ProjectRoot: "/opt/scheduling-core", BinaryPath: "/opt/scheduling-core/bin/scheduler-install"}

func TestGenerateLaunchdPlistIntervalJob(t *testing.T) {
	plist, err := GenerateLaunchdPlist(JobSpec{Name: "retention_sweep", IntervalSeconds: 86400}, target)
	require.NoError(t, err)
	require.Contains(t, plist, "com.scheduling-core.retention_sweep")
	require.Contains(t, plist, "<key>StartInterval</key>")
	require.Contains(t, plist, "<integer>86400</integer>")
}

func TestGenerateLaunchdPlistDailyJobUsesFirstTime(t *testing.T) {
	plist, err := GenerateLaunchdPlist(JobSpec{Name: "srs_morning_batch", DailyTimes: []string{"08:30", "18:00"}}, target)
	require.NoError(t, err)
	require.Contains(t, plist, "<key>Hour</key>\n        <integer>8</integer>")
	require.Contains(t, plist, "<key>Minute</key>\n        <integer>30</integer>")
}

func TestGenerateLaunchdPlistRejectsJobWithNoSchedule(t *testing.T) {
	_, err := GenerateLaunchdPlist(JobSpec{Name: "broken"}, target)
	require.Error(t, err)
}

func TestGenerateSystemdUnitsIntervalJob(t *testing.T) {
	units, err := GenerateSystemdUnits(JobSpec{Name: "retention_sweep", IntervalSeconds: 86400}, target)
	require.NoError(t, err)
	require.Contains(t, units.Service, "ExecStart=")
	require.Contains(t, units.Timer, "OnUnitActiveSec=86400s")
}

func TestGenerateSystemdUnitsDailyJobEmitsOneOnCalendarPerTime(t *testing.T) {
	units, err := GenerateSystemdUnits(JobSpec{Name: "life_weeks_notification", DailyTimes: []string{"06:00", "09:00", "12:00", "18:00"}}, target)
	require.NoError(t, err)
	require.Equal(t, 4, strings.Count(units.Timer, "OnCalendar="))
	require.Contains(t, units.Timer, "OnCalendar=*-*-* 06:00:00")
	require.Contains(t, units.Timer, "OnCalendar=*-*-* 18:00:00")
}

func TestGenerateCrontabEntryIntervalJob(t *testing.T) {
	line, err := GenerateCrontabEntry(JobSpec{Name: "retention_sweep", IntervalSeconds: 1800}, target)
	require.NoError(t, err)
	require.Contains(t, line, "*/30 * * * *")
	require.Contains(t, line, "# retention_sweep")
}

func TestGenerateCrontabEntryDailyJobOneLinePerTime(t *testing.T) {
	out, err := GenerateCrontabEntry(JobSpec{Name: "checkin_u1", DailyTimes: []string{"19:00"}}, target)
	require.NoError(t, err)
	require.Contains(t, out, "0 19 * * *")
}

func TestGenerateCrontabEntryRejectsMalformedTime(t *testing.T) {
	_, err := GenerateCrontabEntry(JobSpec{Name: "bad", DailyTimes: []string{"25:99"}}, target)
	require.Error(t, err)
}
