package config

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration 可读的时长类型：
// - YAML/JSON 支持字符串（例如 "2s", "500ms"）
// - 也支持数字，按“秒”解释
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value == nil {
		return nil
	}
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("unsupported duration node: kind=%d tag=%s value=%q", value.Kind, value.Tag, value.Value)
	}
	switch value.Tag {
	case "!!str":
		dd, err := parseDuration(value.Value)
		if err != nil {
			return err
		}
		d.Duration = dd
		return nil
	case "!!int", "!!float":
		f, err := strconv.ParseFloat(strings.TrimSpace(value.Value), 64)
		if err != nil {
			return fmt.Errorf("invalid duration seconds %q: %w", value.Value, err)
		}
		d.Duration = time.Duration(f * float64(time.Second))
		return nil
	}
	return fmt.Errorf("unsupported duration node: kind=%d tag=%s value=%q", value.Kind, value.Tag, value.Value)
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "" || s == "null" {
		d.Duration = 0
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		dd, err := parseDuration(str)
		if err != nil {
			return err
		}
		d.Duration = dd
		return nil
	}
	var secs float64
	if err := json.Unmarshal(b, &secs); err != nil {
		return err
	}
	d.Duration = time.Duration(secs * float64(time.Second))
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// parseDuration 解析 "2s" 形式，纯数字按秒处理
func parseDuration(raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return time.Duration(f * float64(time.Second)), nil
	}
	dd, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	}
	return dd, nil
}
