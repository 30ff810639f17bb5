// Package config adapts the teacher's environment-parsing helpers
// (GetEnv/GetEnvBool/GetEnvInt) to the flat, environment-backed
// configuration keys spec §6 recognises.
package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/glebis/telegram-agent-sub002/internal/model"
)

// GetEnv retrieves a string environment variable, falling back to
// defaultValue when unset or blank.
func GetEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

// GetEnvBool retrieves a boolean environment variable. Accepts true,
// 1, yes, y (case-insensitive) as true; anything else as false.
func GetEnvBool(key string, defaultValue bool) bool {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return defaultValue
	}
	lower := strings.ToLower(val)
	return lower == "true" || lower == "1" || lower == "yes" || lower == "y"
}

// GetEnvInt retrieves an integer environment variable, falling back
// to defaultValue when unset or unparsable.
func GetEnvInt(key string, defaultValue int) int {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return defaultValue
	}
	return parsed
}

// QuietHours is the scheduler.quiet_hours.* config (spec §6).
type QuietHours struct {
	Start string
	End   string
}

// Accountability is the accountability.* config (spec §6).
type Accountability struct {
	DefaultCheckTime         string
	DefaultStruggleThreshold int
}

// SRSMorningBatch is the srs.morning_batch.* config (spec §6).
type SRSMorningBatch struct {
	Time    string
	Size    int
	MaxSize int
}

// Config is the complete set of recognised configuration keys (spec
// §6), loaded once at process startup.
type Config struct {
	QuietHours       QuietHours
	Accountability   Accountability
	SRSMorningBatch  SRSMorningBatch
	LifeWeeksEnabled bool
	RetentionDefault model.Retention
}

// Load reads every recognised key from the environment, applying the
// spec-mandated defaults for anything unset.
func Load() Config {
	return Config{
		QuietHours: QuietHours{
			Start: GetEnv("SCHEDULER_QUIET_HOURS_START", "22:00"),
			End:   GetEnv("SCHEDULER_QUIET_HOURS_END", "07:00"),
		},
		Accountability: Accountability{
			DefaultCheckTime:         GetEnv("ACCOUNTABILITY_DEFAULT_CHECK_TIME", "19:00"),
			DefaultStruggleThreshold: GetEnvInt("ACCOUNTABILITY_DEFAULT_STRUGGLE_THRESHOLD", 3),
		},
		SRSMorningBatch: SRSMorningBatch{
			Time:    GetEnv("SRS_MORNING_BATCH_TIME", "09:00"),
			Size:    GetEnvInt("SRS_MORNING_BATCH_SIZE", 5),
			MaxSize: GetEnvInt("SRS_MORNING_BATCH_MAX_SIZE", 20),
		},
		LifeWeeksEnabled: GetEnvBool("LIFE_WEEKS_ENABLED", true),
		RetentionDefault: model.Retention(GetEnv("RETENTION_DEFAULT", string(model.Retention1Year))),
	}
}
