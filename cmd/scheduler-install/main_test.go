package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRunInstallLaunchdWritesPlistForKnownJob(t *testing.T) {
	var stdout, stderr bytes.Buffer
	err := run([]string{"install", "retention_sweep", "--backend", "launchd", "--project-root", "/opt/scheduling-core"}, &stdout, &stderr)
	require.NoError(t, err)
	require.Contains(t, stdout.String(), "com.scheduling-core.retention_sweep")
	require.Contains(t, stdout.String(), "StartInterval")
}

func TestRunInstallSystemdWritesUnitsForDailyJob(t *testing.T) {
	var stdout, stderr bytes.Buffer
	err := run([]string{"install", "life_weeks_notification", "--backend", "systemd"}, &stdout, &stderr)
	require.NoError(t, err)
	require.Equal(t, 4, strings.Count(stdout.String(), "OnCalendar="))
}

func TestRunInstallCronWritesCrontabLine(t *testing.T) {
	var stdout, stderr bytes.Buffer
	err := run([]string{"install", "srs_morning_batch", "--backend", "cron"}, &stdout, &stderr)
	require.NoError(t, err)
	require.Contains(t, stdout.String(), "0 9 * * *")
}

func TestRunInstallRejectsUnknownJob(t *testing.T) {
	var stdout, stderr bytes.Buffer
	err := run([]string{"install", "not_a_real_job", "--backend", "cron"}, &stdout, &stderr)
	require.Error(t, err)
}

func TestRunInstallRejectsUnknownBackend(t *testing.T) {
	var stdout, stderr bytes.Buffer
	err := run([]string{"install", "retention_sweep", "--backend", "carrier-pigeon"}, &stdout, &stderr)
	require.Error(t, err)
}

func TestRunInstallRejectsMissingBackend(t *testing.T) {
	var stdout, stderr bytes.Buffer
	err := run([]string{"install", "retention_sweep"}, &stdout, &stderr)
	require.Error(t, err)
}

func TestRunUninstallKnownJobReportsTargetFile(t *testing.T) {
	var stdout, stderr bytes.Buffer
	err := run([]string{"uninstall", "retention_sweep", "--backend", "cron"}, &stdout, &stderr)
	require.NoError(t, err)
	require.Contains(t, stdout.String(), "retention_sweep")
}

func TestRunUninstallRejectsUnknownJob(t *testing.T) {
	var stdout, stderr bytes.Buffer
	err := run([]string{"uninstall", "ghost_job", "--backend", "cron"}, &stdout, &stderr)
	require.Error(t, err)
}

func TestRunListPrintsAllKnownJobsSorted(t *testing.T) {
	var stdout, stderr bytes.Buffer
	err := run([]string{"list"}, &stdout, &stderr)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(stdout.String()), "\n")
	require.Equal(t, []string{"life_weeks_notification", "retention_sweep", "srs_morning_batch", "srs_recompute_due"}, lines)
}

func TestRunRejectsNoCommand(t *testing.T) {
	var stdout, stderr bytes.Buffer
	err := run(nil, &stdout, &stderr)
	require.Error(t, err)
}

func TestRunRejectsUnknownCommand(t *testing.T) {
	var stdout, stderr bytes.Buffer
	err := run([]string{"frobnicate"}, &stdout, &stderr)
	require.Error(t, err)
}
