package config

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/BartekS5/mapflow/internal/secret"
)

// Load reads the base file and the process file and merges them; keys of
// the process file win. base may be empty.
func Load(base, process string, d secret.Decrypter) (*Store, error) {
	values := map[string]string{}
	for _, path := range []string{base, process} {
		if path == "" {
			continue
		}
		m, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		for k, v := range m {
			values[k] = v
		}
	}
	return NewStore(values, d), nil
}

// LoadFile parses one configuration file into a flat map. YAML files are
// flattened by joining nested keys with '_', .env files go through
// godotenv and everything else is read as key=value lines.
func LoadFile(path string) (map[string]string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return loadYAML(path)
	case ".env":
		m, err := godotenv.Read(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
		}
		return m, nil
	default:
		return loadProperties(path)
	}
}

func loadYAML(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse config file '%s': %w", path, err)
	}
	out := map[string]string{}
	flatten("", raw, out)
	return out, nil
}

func flatten(prefix string, node map[string]any, out map[string]string) {
	for k, v := range node {
		key := k
		if prefix != "" {
			key = prefix + "_" + k
		}
		switch val := v.(type) {
		case map[string]any:
			flatten(key, val, out)
		case []any:
			items := make([]string, 0, len(val))
			for _, item := range val {
				items = append(items, fmt.Sprint(item))
			}
			out[key] = strings.Join(items, DefaultListDelimiter)
		case nil:
			out[key] = ""
		case bool:
			if val {
				out[key] = "yes"
			} else {
				out[key] = "no"
			}
		default:
			out[key] = fmt.Sprint(val)
		}
	}
}

// loadProperties reads key=value lines. '#' and '!' start comment lines and
// only the first '=' separates key from value, so values may contain '='
// and ':' freely.
func loadProperties(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}
	out := map[string]string{}
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") || strings.HasPrefix(text, "!") {
			continue
		}
		k, v, ok := strings.Cut(text, "=")
		if !ok {
			return nil, Errorf("", "%s:%d: expected key=value", path, line)
		}
		out[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}
	return out, nil
}
