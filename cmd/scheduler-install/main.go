// Command scheduler-install writes OS-level schedule configuration for
// this process's fixed system-level jobs, so they can run under
// launchd, systemd, or cron instead of (or alongside) the in-process
// RuntimeScheduler. Per-user jobs (checkin_<user>, struggle_<user>,
// ...) are registered dynamically at runtime and are out of scope for
// this static CLI.
//
// Usage:
//
//	scheduler-install install <job> --backend {launchd|systemd|cron} [--project-root DIR] [--binary PATH]
//	scheduler-install uninstall <job> --backend {launchd|systemd|cron}
//	scheduler-install list
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/glebis/telegram-agent-sub002/internal/installgen"
)

// registry lists the fixed system-level jobs this binary knows how to
// install, mirroring the JobSpecs each scheduler package registers
// (srsschedule.RegisterJobs, lifeweeks.Scheduler.RegisterJob,
// retention.Sweeper.RegisterJob).
var registry = map[string]installgen.JobSpec{
	"srs_recompute_due":       {Name: "srs_recompute_due", IntervalSeconds: 24 * 60 * 60},
	"srs_morning_batch":       {Name: "srs_morning_batch", DailyTimes: []string{"09:00"}},
	"life_weeks_notification": {Name: "life_weeks_notification", DailyTimes: []string{"06:00", "09:00", "12:00", "18:00"}},
	"retention_sweep":         {Name: "retention_sweep", IntervalSeconds: 24 * 60 * 60},
}

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		printUsage(stderr)
		return errors.New("no command specified")
	}

	switch args[0] {
	case "install":
		return runInstall(args[1:], stdout)
	case "uninstall":
		return runUninstall(args[1:], stdout)
	case "list":
		return runList(args[1:], stdout)
	default:
		printUsage(stderr)
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func runInstall(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("install", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	backend := fs.String("backend", "", "launchd, systemd, or cron")
	projectRoot := fs.String("project-root", defaultProjectRoot(), "project root the generated config runs from")
	binaryPath := fs.String("binary", "", "path to the scheduling-core daemon binary (default <project-root>/bin/scheduling-core)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("install requires exactly one job name")
	}
	jobName := fs.Arg(0)

	job, ok := registry[jobName]
	if !ok {
		return fmt.Errorf("unknown job %q", jobName)
	}

	target := installgen.Target{ProjectRoot: *projectRoot, BinaryPath: resolveBinaryPath(*binaryPath, *projectRoot)}

	body, filename, err := generate(job, target, *backend)
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "# %s\n%s\n", filename, body)
	return nil
}

func runUninstall(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("uninstall", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	backend := fs.String("backend", "", "launchd, systemd, or cron")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("uninstall requires exactly one job name")
	}
	jobName := fs.Arg(0)

	if _, ok := registry[jobName]; !ok {
		return fmt.Errorf("unknown job %q", jobName)
	}

	filename, err := uninstallFilename(jobName, *backend)
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "remove %s\n", filename)
	return nil
}

func runList(_ []string, stdout io.Writer) error {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintln(stdout, name)
	}
	return nil
}

// generate dispatches job+target to the requested backend's generator,
// returning the rendered config text and the filename it belongs in.
func generate(job installgen.JobSpec, target installgen.Target, backend string) (body, filename string, err error) {
	switch backend {
	case "launchd":
		plist, err := installgen.GenerateLaunchdPlist(job, target)
		if err != nil {
			return "", "", err
		}
		return plist, fmt.Sprintf("com.scheduling-core.%s.plist", job.Name), nil
	case "systemd":
		units, err := installgen.GenerateSystemdUnits(job, target)
		if err != nil {
			return "", "", err
		}
		return units.Service + "\n" + units.Timer, fmt.Sprintf("scheduling-core-%s.service + .timer", job.Name), nil
	case "cron":
		line, err := installgen.GenerateCrontabEntry(job, target)
		if err != nil {
			return "", "", err
		}
		return line, "crontab", nil
	case "":
		return "", "", errors.New("--backend is required (launchd, systemd, or cron)")
	default:
		return "", "", fmt.Errorf("unknown backend %q", backend)
	}
}

func uninstallFilename(jobName, backend string) (string, error) {
	switch backend {
	case "launchd":
		return fmt.Sprintf("~/Library/LaunchAgents/com.scheduling-core.%s.plist", jobName), nil
	case "systemd":
		return fmt.Sprintf("scheduling-core-%s.service and .timer", jobName), nil
	case "cron":
		return fmt.Sprintf("the crontab line tagged '# %s'", jobName), nil
	case "":
		return "", errors.New("--backend is required (launchd, systemd, or cron)")
	default:
		return "", fmt.Errorf("unknown backend %q", backend)
	}
}

func defaultProjectRoot() string {
	if wd, err := os.Getwd(); err == nil {
		return wd
	}
	return "."
}

func resolveBinaryPath(explicit, projectRoot string) string {
	if explicit != "" {
		return explicit
	}
	return filepath.Join(projectRoot, "bin", "scheduling-core")
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  scheduler-install install <job> --backend {launchd|systemd|cron} [--project-root DIR] [--binary PATH]")
	fmt.Fprintln(w, "  scheduler-install uninstall <job> --backend {launchd|systemd|cron}")
	fmt.Fprintln(w, "  scheduler-install list")
}
