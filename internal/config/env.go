package config

import (
	"bufio"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	reExport = regexp.MustCompile(`^\s*export\s+([A-Za-z_][A-Za-z0-9_]*)\s*=\s*(.*)\s*$`)
	reAssign = regexp.MustCompile(`^\s*([A-Za-z_][A-Za-z0-9_]*)\s*=\s*(.*)\s*$`)
)

// LoadEnv loads shell-style env files into the process environment.
// Supports lines like:
//
//	export KEY=value
//	KEY=value
//
// Values may be unquoted, single-quoted, or double-quoted. Variables already
// set in the environment are left alone, and earlier files win over later
// ones.
func LoadEnv(paths ...string) {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if fi, err := os.Stat(p); err != nil || fi.IsDir() {
			continue
		}
		f, err := os.Open(p)
		if err != nil {
			continue
		}
		scan := bufio.NewScanner(f)
		for scan.Scan() {
			key, val, ok := parseLine(scan.Text())
			if !ok {
				continue
			}
			if _, set := os.LookupEnv(key); set {
				continue
			}
			os.Setenv(key, val)
		}
		f.Close()
	}
}

func parseLine(line string) (key, val string, ok bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return "", "", false
	}
	if m := reExport.FindStringSubmatch(line); m != nil {
		key, val = m[1], m[2]
	} else if m := reAssign.FindStringSubmatch(line); m != nil {
		key, val = m[1], m[2]
	} else {
		return "", "", false
	}

	val = strings.TrimSpace(val)
	switch {
	case len(val) >= 2 && strings.HasPrefix(val, `"`) && strings.HasSuffix(val, `"`):
		v := val[1 : len(val)-1]
		v = strings.ReplaceAll(v, `\\`, `\`)
		v = strings.ReplaceAll(v, `\"`, `"`)
		val = v
	case len(val) >= 2 && strings.HasPrefix(val, "'") && strings.HasSuffix(val, "'"):
		val = val[1 : len(val)-1]
	}
	return key, val, true
}

// LoadDefaultEnv loads INCISION_ENV, ~/.incision.env and ./.env, when
// present.
func LoadDefaultEnv() {
	if p := strings.TrimSpace(os.Getenv("INCISION_ENV")); p != "" {
		LoadEnv(p)
	}
	if home, err := os.UserHomeDir(); err == nil {
		LoadEnv(filepath.Join(home, ".incision.env"))
	}
	LoadEnv(".env")
}
