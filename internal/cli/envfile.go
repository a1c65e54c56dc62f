package cli

import (
	"bufio"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
)

var envKeyPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// readEnvFile parses a dotenv style file into KEY=VALUE pairs for the child
// process. Unquoted and double quoted values expand ${VAR} references
// against earlier keys in the file, then against lookup.
func readEnvFile(path string, lookup func(string) (string, bool)) ([]string, error) {
	if strings.TrimSpace(path) == "" {
		return nil, nil
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("read env file: %w", err)
	}
	defer file.Close()

	if lookup == nil {
		lookup = os.LookupEnv
	}
	defined := map[string]string{}
	resolve := func(key string) string {
		if value, ok := defined[key]; ok {
			return value
		}
		value, _ := lookup(key)
		return value
	}

	var pairs []string
	scanner := bufio.NewScanner(file)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		entry, ok, err := parseEnvLine(scanner.Text())
		if err != nil {
			return nil, fmt.Errorf("parse %s:%d: %w", path, lineNo, err)
		}
		if !ok {
			continue
		}
		value := entry.value
		if entry.expand {
			value = os.Expand(value, resolve)
		}
		defined[entry.key] = value
		pairs = append(pairs, entry.key+"="+value)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan %s: %w", path, err)
	}
	return pairs, nil
}

type envEntry struct {
	key    string
	value  string
	expand bool
}

func parseEnvLine(raw string) (envEntry, bool, error) {
	line := strings.TrimSpace(raw)
	if line == "" || strings.HasPrefix(line, "#") {
		return envEntry{}, false, nil
	}
	line = strings.TrimSpace(strings.TrimPrefix(line, "export "))

	key, value, found := strings.Cut(line, "=")
	if !found {
		return envEntry{}, false, fmt.Errorf("expected KEY=VALUE")
	}
	key = strings.TrimSpace(key)
	if !envKeyPattern.MatchString(key) {
		return envEntry{}, false, fmt.Errorf("invalid key %q", key)
	}
	value = strings.TrimSpace(value)

	switch {
	case len(value) >= 2 && value[0] == '"' && value[len(value)-1] == '"':
		decoded, err := strconv.Unquote(value)
		if err != nil {
			return envEntry{}, false, fmt.Errorf("invalid quoted value for %q", key)
		}
		return envEntry{key: key, value: decoded, expand: true}, true, nil
	case len(value) >= 2 && value[0] == '\'' && value[len(value)-1] == '\'':
		return envEntry{key: key, value: value[1 : len(value)-1]}, true, nil
	}
	if i := strings.Index(value, " #"); i >= 0 {
		value = strings.TrimSpace(value[:i])
	}
	return envEntry{key: key, value: value, expand: true}, true, nil
}
