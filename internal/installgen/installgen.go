// Package installgen generates OS-level schedule configuration for
// installing a job outside this process's own RuntimeScheduler: a
// launchd plist, a systemd service+timer pair, or a crontab line.
// These are plain text generators — they never run a job themselves,
// ported from
// original_source/src/services/scheduler/install_generators.py.
package installgen

import (
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"

	"github.com/glebis/telegram-agent-sub002/internal/scheduler"
)

// JobSpec is the subset of scheduler.JobSpec the install generators
// need: a name plus either an interval or a set of HH:MM daily times.
type JobSpec struct {
	Name            string
	IntervalSeconds int
	DailyTimes      []string // "HH:MM"
}

// FromSchedulerSpec adapts a scheduler.JobSpec into the generator's
// narrower view.
func FromSchedulerSpec(spec scheduler.JobSpec) JobSpec {
	return JobSpec{Name: spec.Name, IntervalSeconds: spec.IntervalSeconds, DailyTimes: spec.DailyTimes}
}

// Target names the binary and working directory the generated configs
// invoke.
type Target struct {
	ProjectRoot string
	BinaryPath  string
	WorkingDir  string
}

func (t Target) workingDir() string {
	if t.WorkingDir != "" {
		return t.WorkingDir
	}
	return t.ProjectRoot
}

// GenerateLaunchdPlist produces a macOS launchd plist for job.
func GenerateLaunchdPlist(job JobSpec, t Target) (string, error) {
	label := fmt.Sprintf("com.scheduling-core.%s", job.Name)
	logDir := t.ProjectRoot + "/logs"

	var scheduleXML string
	switch {
	case job.IntervalSeconds > 0:
		scheduleXML = fmt.Sprintf("    <key>StartInterval</key>\n    <integer>%d</integer>", job.IntervalSeconds)
	case len(job.DailyTimes) > 0:
		hour, minute, err := parseHHMM(job.DailyTimes[0])
		if err != nil {
			return "", err
		}
		scheduleXML = fmt.Sprintf(
			"    <key>StartCalendarInterval</key>\n    <dict>\n        <key>Hour</key>\n        <integer>%d</integer>\n        <key>Minute</key>\n        <integer>%d</integer>\n    </dict>",
			hour, minute)
	default:
		return "", fmt.Errorf("job %q has neither an interval nor daily times", job.Name)
	}

	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN"
  "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
    <key>Label</key>
    <string>%s</string>
    <key>ProgramArguments</key>
    <array>
        <string>%s</string>
    </array>
    <key>WorkingDirectory</key>
    <string>%s</string>
%s
    <key>StandardOutPath</key>
    <string>%s/%s.log</string>
    <key>StandardErrorPath</key>
    <string>%s/%s.err</string>
</dict>
</plist>
`, label, t.BinaryPath, t.workingDir(), scheduleXML, logDir, job.Name, logDir, job.Name), nil
}

// SystemdUnits is the service+timer pair generated for a job.
type SystemdUnits struct {
	Service string
	Timer   string
}

// GenerateSystemdUnits produces a systemd service+timer pair for job.
func GenerateSystemdUnits(job JobSpec, t Target) (SystemdUnits, error) {
	service := fmt.Sprintf(`[Unit]
Description=Scheduling core job %s
After=network.target

[Service]
Type=oneshot
WorkingDirectory=%s
ExecStart=%s

[Install]
WantedBy=multi-user.target
`, job.Name, t.workingDir(), t.BinaryPath)

	var scheduleLines []string
	switch {
	case job.IntervalSeconds > 0:
		scheduleLines = []string{fmt.Sprintf("OnUnitActiveSec=%ds", job.IntervalSeconds)}
	case len(job.DailyTimes) > 0:
		for _, hhmm := range job.DailyTimes {
			hour, minute, err := parseHHMM(hhmm)
			if err != nil {
				return SystemdUnits{}, err
			}
			scheduleLines = append(scheduleLines, fmt.Sprintf("OnCalendar=*-*-* %02d:%02d:00", hour, minute))
		}
	default:
		return SystemdUnits{}, fmt.Errorf("job %q has neither an interval nor daily times", job.Name)
	}

	timer := fmt.Sprintf(`[Unit]
Description=Timer for scheduling core job %s

[Timer]
%s
Persistent=true

[Install]
WantedBy=timers.target
`, job.Name, strings.Join(scheduleLines, "\n"))

	return SystemdUnits{Service: service, Timer: timer}, nil
}

// GenerateCrontabEntry produces one or more crontab lines for job,
// validated through robfig/cron's standard parser so a malformed
// entry is caught before it's written to disk.
func GenerateCrontabEntry(job JobSpec, t Target) (string, error) {
	cmd := fmt.Sprintf("cd %s && %s", t.workingDir(), t.BinaryPath)

	switch {
	case job.IntervalSeconds > 0:
		minutes := job.IntervalSeconds / 60
		if minutes < 1 {
			minutes = 1
		}
		expr := fmt.Sprintf("*/%d * * * *", minutes)
		if _, err := cron.ParseStandard(expr); err != nil {
			return "", fmt.Errorf("generated invalid cron expression for %q: %w", job.Name, err)
		}
		return fmt.Sprintf("%s %s  # %s", expr, cmd, job.Name), nil
	case len(job.DailyTimes) > 0:
		var lines []string
		for _, hhmm := range job.DailyTimes {
			hour, minute, err := parseHHMM(hhmm)
			if err != nil {
				return "", err
			}
			expr := fmt.Sprintf("%d %d * * *", minute, hour)
			if _, err := cron.ParseStandard(expr); err != nil {
				return "", fmt.Errorf("generated invalid cron expression for %q: %w", job.Name, err)
			}
			lines = append(lines, fmt.Sprintf("%s %s  # %s", expr, cmd, job.Name))
		}
		return strings.Join(lines, "\n"), nil
	default:
		return "", fmt.Errorf("job %q has neither an interval nor daily times", job.Name)
	}
}

func parseHHMM(s string) (hour, minute int, err error) {
	if _, err := fmt.Sscanf(s, "%d:%d", &hour, &minute); err != nil {
		return 0, 0, fmt.Errorf("invalid HH:MM %q: %w", s, err)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid HH:MM %q", s)
	}
	return hour, minute, nil
}
