package verify

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Check is one verification verdict. Detail explains a failure; passing
// checks carry no detail.
type Check struct {
	Name   string `yaml:"name"`
	Passed bool   `yaml:"passed"`
	Detail string `yaml:"detail,omitempty"`
}

func pass(name string) Check {
	return Check{Name: name, Passed: true}
}

func fail(name, detail string) Check {
	return Check{Name: name, Passed: false, Detail: detail}
}

// Report collects every check of one verification run.
type Report struct {
	Deployment string  `yaml:"deployment"`
	Passed     int     `yaml:"passed"`
	Failed     int     `yaml:"failed"`
	Checks     []Check `yaml:"checks"`
}

func (r *Report) add(checks ...Check) {
	for _, check := range checks {
		if check.Passed {
			r.Passed++
		} else {
			r.Failed++
		}
	}

	r.Checks = append(r.Checks, checks...)
}

func (r Report) err() error {
	if r.Failed == 0 {
		return nil
	}

	return fmt.Errorf("%d of %d checks failed: %w", r.Failed, r.Passed+r.Failed, ErrChecksFailed)
}

// Write saves the report as YAML.
func (r Report) Write(path string) error {
	data, err := yaml.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	return nil
}
