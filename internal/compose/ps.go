package compose

import (
	"bufio"
	"encoding/json"
	"fmt"
	"strings"
)

// Container is one entry of `compose ps --format json`.
type Container struct {
	Name    string `json:"Name"`
	Service string `json:"Service"`
	State   string `json:"State"`
	Health  string `json:"Health,omitempty"`
}

func (c Container) IsRunning() bool {
	return strings.EqualFold(c.State, "running")
}

// ParsePS accepts both output shapes compose has used: a JSON array (before
// v2.21) and one object per line.
func ParsePS(out string) ([]Container, error) {
	out = strings.TrimSpace(out)
	if out == "" {
		return nil, nil
	}

	if strings.HasPrefix(out, "[") {
		var cs []Container
		if err := json.Unmarshal([]byte(out), &cs); err != nil {
			return nil, fmt.Errorf("parsing compose ps output: %w", err)
		}
		return cs, nil
	}

	var cs []Container
	sc := bufio.NewScanner(strings.NewReader(out))
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var c Container
		if err := json.Unmarshal([]byte(line), &c); err != nil {
			return nil, fmt.Errorf("parsing compose ps line %q: %w", line, err)
		}
		cs = append(cs, c)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading compose ps output: %w", err)
	}
	return cs, nil
}
