package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"time"

	"adoinventory/internal/flags"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

// File is the on-disk form of Config. Durations are Go duration strings ("30s").
// Unset keys keep the value already in the Config.
type File struct {
	Input struct {
		OrgFile *string  `toml:"org_file"`
		Orgs    []string `toml:"orgs"`
	} `toml:"input"`
	Output struct {
		Dir         *string `toml:"dir"`
		Emit        *string `toml:"emit"`
		MetricsFile *string `toml:"metrics_file"`
		NoConsole   *bool   `toml:"no_console"`
	} `toml:"output"`
	Runtime struct {
		MaxOrgWorkers     *int     `toml:"max_org_workers"`
		MaxProjectWorkers *int     `toml:"max_project_workers"`
		RequestTimeout    *string  `toml:"request_timeout"`
		MaxAttempts       *int     `toml:"max_attempts"`
		BackoffBase       *string  `toml:"backoff_base"`
		BackoffMax        *string  `toml:"backoff_max"`
		RPS               *float64 `toml:"rps"`
		Timeout           *string  `toml:"timeout"`
		Verbose           *bool    `toml:"verbose"`
	} `toml:"runtime"`
	GitHub struct {
		APIURL     *string  `toml:"api_url"`
		DeepScan   *bool    `toml:"deep_scan"`
		Visibility *string  `toml:"visibility"`
		Archived   *string  `toml:"archived"`
		Forks      *string  `toml:"forks"`
		Topic      []string `toml:"topic"`
		Include    []string `toml:"include"`
		Exclude    []string `toml:"exclude"`
		MaxRepos   *int     `toml:"max_repos"`
	} `toml:"github"`
}

// LoadFile decodes a TOML config file. Unknown keys are an error.
func LoadFile(path string) (*File, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	var f File
	dec := toml.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return &f, nil
}

// ApplyFile copies every key present in f into c, except those whose flag was set
// explicitly on the command line.
func (c *Config) ApplyFile(f *File, set func(flag string) bool) error {
	if f == nil {
		return nil
	}
	if set == nil {
		set = func(string) bool { return false }
	}

	if f.Input.OrgFile != nil && c.Input.OrgFile == "" {
		c.Input.OrgFile = *f.Input.OrgFile
	}
	applyList(&c.Input.Orgs, f.Input.Orgs, set(flags.FlagOrg))

	applyValue(&c.Output.Dir, f.Output.Dir, set(flags.FlagOutputDir))
	applyValue(&c.Output.Emit, f.Output.Emit, set(flags.FlagEmit))
	applyValue(&c.Output.MetricsFile, f.Output.MetricsFile, set(flags.FlagMetricsFile))
	applyValue(&c.Output.NoConsole, f.Output.NoConsole, set(flags.FlagNoConsole))

	applyValue(&c.Runtime.MaxOrgWorkers, f.Runtime.MaxOrgWorkers, set(flags.FlagMaxOrgWorkers))
	applyValue(&c.Runtime.MaxProjectWorkers, f.Runtime.MaxProjectWorkers, set(flags.FlagMaxProjectWorkers))
	applyValue(&c.Runtime.MaxAttempts, f.Runtime.MaxAttempts, set(flags.FlagMaxAttempts))
	applyValue(&c.Runtime.RPS, f.Runtime.RPS, set(flags.FlagRPS))
	applyValue(&c.Runtime.Verbose, f.Runtime.Verbose, set(flags.FlagVerbose))

	durations := []struct {
		dst  *time.Duration
		src  *string
		flag string
	}{
		{&c.Runtime.RequestTimeout, f.Runtime.RequestTimeout, flags.FlagRequestTimeout},
		{&c.Runtime.BackoffBase, f.Runtime.BackoffBase, flags.FlagBackoffBase},
		{&c.Runtime.BackoffMax, f.Runtime.BackoffMax, flags.FlagBackoffMax},
		{&c.Runtime.Timeout, f.Runtime.Timeout, flags.FlagTimeout},
	}
	for _, d := range durations {
		if d.src == nil || set(d.flag) {
			continue
		}
		v, err := time.ParseDuration(*d.src)
		if err != nil {
			return fmt.Errorf("invalid %s in config file: %w", d.flag, err)
		}
		*d.dst = v
	}

	applyValue(&c.GitHub.APIURL, f.GitHub.APIURL, set(flags.FlagGitHubAPIURL))
	applyValue(&c.GitHub.DeepScan, f.GitHub.DeepScan, set(flags.FlagDeepScan))
	applyValue(&c.GitHub.Visibility, f.GitHub.Visibility, set(flags.FlagVisibility))
	applyValue(&c.GitHub.Archived, f.GitHub.Archived, set(flags.FlagArchived))
	applyValue(&c.GitHub.Forks, f.GitHub.Forks, set(flags.FlagForks))
	applyValue(&c.GitHub.MaxRepos, f.GitHub.MaxRepos, set(flags.FlagMaxRepos))
	applyList(&c.GitHub.Topic, f.GitHub.Topic, set(flags.FlagTopic))
	applyList(&c.GitHub.Include, f.GitHub.Include, set(flags.FlagInclude))
	applyList(&c.GitHub.Exclude, f.GitHub.Exclude, set(flags.FlagExclude))
	return nil
}

func applyValue[T any](dst *T, src *T, explicit bool) {
	if src == nil || explicit {
		return
	}
	*dst = *src
}

func applyList(dst *[]string, src []string, explicit bool) {
	if len(src) == 0 || explicit {
		return
	}
	*dst = append([]string(nil), src...)
}

// LoadDotEnv loads .env from the working directory when present. Variables
// already set in the environment win.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// ErrMissingToken is returned when no Azure DevOps token is configured.
var ErrMissingToken = errors.New("ADO_PAT is not set")

// ResolveADOToken reads the Azure DevOps personal access token.
func ResolveADOToken() (string, error) {
	if tok := os.Getenv("ADO_PAT"); tok != "" {
		return tok, nil
	}
	return "", ErrMissingToken
}
