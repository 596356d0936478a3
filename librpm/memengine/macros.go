package memengine

import (
	"bufio"
	"os"
	"regexp"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/cavaliercoder/rpmq/librpm"
)

var (
	macroNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	macroLinePattern = regexp.MustCompile(`(?s)^%([A-Za-z_][A-Za-z0-9_]*)\s+(.*)$`)
	macroSkipPattern = regexp.MustCompile(`(^$)|(^\s+$)|(^#)`)
	macroRefPattern  = regexp.MustCompile(`%%|%\{(\??)([A-Za-z_][A-Za-z0-9_]*)\}|%([A-Za-z_][A-Za-z0-9_]*)`)
)

const maxExpandDepth = 16

// ReadConfigFiles defines the default macros and then the macros in file, one
// "%name value" per line. A trailing backslash continues a value on the next
// line.
func (e *Engine) ReadConfigFiles(file string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record("ReadConfigFiles", 0)

	e.define(librpm.DBPathMacro, DefaultDBPath)
	if file == "" {
		return 0
	}

	f, err := os.Open(file)
	if err != nil {
		log.WithError(err).Debug("memengine: cannot open macro file")
		return -1
	}
	defer f.Close()

	n := 0
	var cont string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		n++
		s := scanner.Text()
		if cont != "" {
			s = cont + "\n" + s
			cont = ""
		}
		if strings.HasSuffix(s, `\`) {
			cont = strings.TrimSuffix(s, `\`)
			continue
		}
		if macroSkipPattern.MatchString(s) {
			continue
		}
		m := macroLinePattern.FindStringSubmatch(s)
		if m == nil {
			log.WithFields(log.Fields{"file": file, "line": n}).Debug("memengine: syntax error in macro file")
			return -1
		}
		e.define(m[1], strings.TrimSpace(m[2]))
	}
	if err := scanner.Err(); err != nil {
		return -1
	}
	return 0
}

// DefineMacro defines a macro from "name value". The level is ignored.
func (e *Engine) DefineMacro(macro string, level librpm.MacroLevel) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record("DefineMacro", 0)

	name, value, _ := strings.Cut(strings.TrimPrefix(macro, "%"), " ")
	if !macroNamePattern.MatchString(name) {
		return -1
	}
	e.define(name, strings.TrimSpace(value))
	return 0
}

func (e *Engine) define(name, value string) {
	e.macros[name] = append(e.macros[name], value)
}

// DeleteMacro pops the most recent definition of name.
func (e *Engine) DeleteMacro(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record("DeleteMacro", 0)

	stack := e.macros[name]
	switch len(stack) {
	case 0:
	case 1:
		delete(e.macros, name)
	default:
		e.macros[name] = stack[:len(stack)-1]
	}
}

// ExpandMacro expands %name, %{name} and %{?name} references in expr.
// Undefined references are left as they are, except %{?name} which expands
// to nothing.
func (e *Engine) ExpandMacro(expr string) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record("ExpandMacro", 0)
	return e.expand(expr, 0)
}

func (e *Engine) lookup(name string) (string, bool) {
	stack := e.macros[name]
	if len(stack) == 0 {
		return "", false
	}
	return stack[len(stack)-1], true
}

func (e *Engine) expand(expr string, depth int) string {
	if depth > maxExpandDepth || !strings.Contains(expr, "%") {
		return expr
	}
	return macroRefPattern.ReplaceAllStringFunc(expr, func(ref string) string {
		if ref == "%%" {
			return "%"
		}
		m := macroRefPattern.FindStringSubmatch(ref)
		name, optional := m[2], m[1] == "?"
		if name == "" {
			name = m[3]
		}
		v, ok := e.lookup(name)
		if !ok {
			if optional {
				return ""
			}
			return ref
		}
		return e.expand(v, depth+1)
	})
}

// dbPathLocked returns the expanded %{_dbpath}, or "" if it is undefined.
func (e *Engine) dbPathLocked() string {
	v, ok := e.lookup(librpm.DBPathMacro)
	if !ok {
		return ""
	}
	return e.expand(v, 0)
}
