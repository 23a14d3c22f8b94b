package maintenance

import (
	"embed"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/neurobridge-mastery/internal/platform/logger"
)

const scheduleEnv = "MAINTENANCE_SCHEDULE_YAML"

const (
	JobDailySummaryMaintenance = "daily_summary_maintenance"
	JobWeeklyStaleCleanup      = "weekly_stale_cleanup"
	JobHourlyCacheHousekeeping = "hourly_cache_housekeeping"
	JobStaleSummaryRefresh     = "stale_summary_refresh"
)

//go:embed schedule.yaml
var scheduleFS embed.FS

// JobSpec is one entry of the schedule file.
type JobSpec struct {
	Name     string
	Schedule string
	Timeout  time.Duration
	Enabled  bool
}

// fallback used when the schedule file is missing or invalid
var fallbackSchedule = []JobSpec{
	{Name: JobDailySummaryMaintenance, Schedule: "0 2 * * *", Timeout: 30 * time.Minute, Enabled: true},
	{Name: JobWeeklyStaleCleanup, Schedule: "0 3 * * 0", Timeout: 30 * time.Minute, Enabled: true},
	{Name: JobHourlyCacheHousekeeping, Schedule: "0 * * * *", Timeout: time.Minute, Enabled: true},
	{Name: JobStaleSummaryRefresh, Schedule: "0 */6 * * *", Timeout: 30 * time.Minute, Enabled: true},
}

type yamlSchedule struct {
	Version int           `yaml:"version"`
	Jobs    []yamlJobSpec `yaml:"jobs"`
}

type yamlJobSpec struct {
	Name     string `yaml:"name"`
	Schedule string `yaml:"schedule"`
	Timeout  string `yaml:"timeout"`
	Enabled  *bool  `yaml:"enabled"`
}

// LoadSchedule reads MAINTENANCE_SCHEDULE_YAML when set, else the embedded schedule. Any
// read or validation error falls back to the built-in cadences.
func LoadSchedule(log *logger.Logger) []JobSpec {
	data, err := readSchedule()
	if err == nil {
		var specs []JobSpec
		if specs, err = parseSchedule(data); err == nil {
			return specs
		}
	}
	if log != nil {
		log.Warn("maintenance: schedule load failed; using fallback", "error", err)
	}
	out := make([]JobSpec, len(fallbackSchedule))
	copy(out, fallbackSchedule)
	return out
}

func readSchedule() ([]byte, error) {
	if path := strings.TrimSpace(os.Getenv(scheduleEnv)); path != "" {
		return os.ReadFile(path)
	}
	return scheduleFS.ReadFile("schedule.yaml")
}

func parseSchedule(data []byte) ([]JobSpec, error) {
	var doc yamlSchedule
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if len(doc.Jobs) == 0 {
		return nil, fmt.Errorf("schedule has no jobs")
	}
	seen := map[string]bool{}
	specs := make([]JobSpec, 0, len(doc.Jobs))
	for _, j := range doc.Jobs {
		name := strings.TrimSpace(j.Name)
		if name == "" {
			return nil, fmt.Errorf("job with empty name")
		}
		if seen[name] {
			return nil, fmt.Errorf("duplicate job %q", name)
		}
		seen[name] = true
		if strings.TrimSpace(j.Schedule) == "" {
			return nil, fmt.Errorf("job %q has no schedule", name)
		}
		spec := JobSpec{Name: name, Schedule: strings.TrimSpace(j.Schedule), Enabled: true}
		if j.Enabled != nil {
			spec.Enabled = *j.Enabled
		}
		if t := strings.TrimSpace(j.Timeout); t != "" {
			d, err := time.ParseDuration(t)
			if err != nil {
				return nil, fmt.Errorf("job %q timeout: %w", name, err)
			}
			spec.Timeout = d
		}
		specs = append(specs, spec)
	}
	return specs, nil
}
