package hostcl

import (
	"fmt"
	"regexp"
	"strings"

	"blendcl/internal/compute"
)

// sourceName labels diagnostics in build logs.
const sourceName = "<source>"

var kernelDecl = regexp.MustCompile(`(?:__)?kernel\s+void\s+([A-Za-z_]\w*)\s*\(([^)]*)\)\s*\{`)

// declaration is one kernel entry point found in source.
type declaration struct {
	name   string
	params int
	line   int
}

type diagnostic struct {
	line, col int
	msg       string
}

func (d diagnostic) String() string {
	return fmt.Sprintf("%s:%d:%d: error: %s", sourceName, d.line, d.col, d.msg)
}

// compile checks that source is structurally well formed and returns its
// kernel declarations. On failure the returned log is non-empty.
func compile(source string) ([]declaration, string) {
	code, diags := stripComments(source)
	diags = append(diags, checkBalance(code)...)
	var decls []declaration
	if len(diags) == 0 {
		decls, diags = declarations(code)
	}
	if len(diags) == 0 {
		return decls, ""
	}
	lines := make([]string, 0, len(diags)+1)
	for _, d := range diags {
		lines = append(lines, d.String())
	}
	lines = append(lines, fmt.Sprintf("%d error(s) generated.", len(diags)))
	return nil, strings.Join(lines, "\n")
}

// stripComments blanks out comments and the contents of string and character
// literals, keeping newlines and quotes so positions survive.
func stripComments(src string) (string, []diagnostic) {
	out := []byte(src)
	line, col := 1, 1
	for i := 0; i < len(out); i++ {
		switch {
		case out[i] == '/' && i+1 < len(out) && out[i+1] == '/':
			for i < len(out) && out[i] != '\n' {
				out[i] = ' '
				i++
			}
			if i < len(out) {
				line++
				col = 1
			}
			continue
		case out[i] == '/' && i+1 < len(out) && out[i+1] == '*':
			startLine, startCol := line, col
			closed := false
			for ; i < len(out); i++ {
				if out[i] == '*' && i+1 < len(out) && out[i+1] == '/' {
					out[i], out[i+1] = ' ', ' '
					i++
					col += 2
					closed = true
					break
				}
				if out[i] == '\n' {
					line++
					col = 1
					continue
				}
				out[i] = ' '
				col++
			}
			if !closed {
				return string(out), []diagnostic{{startLine, startCol, "unterminated /* comment"}}
			}
			continue
		case out[i] == '"' || out[i] == '\'':
			quote, startCol := out[i], col
			i++
			col++
			for i < len(out) && out[i] != quote && out[i] != '\n' {
				if out[i] == '\\' && i+1 < len(out) && out[i+1] != '\n' {
					out[i] = ' '
					i++
					col++
				}
				out[i] = ' '
				i++
				col++
			}
			if i == len(out) || out[i] == '\n' {
				return string(out), []diagnostic{{line, startCol, fmt.Sprintf("missing terminating %c character", quote)}}
			}
			col++
			continue
		}
		if out[i] == '\n' {
			line++
			col = 1
		} else {
			col++
		}
	}
	return string(out), nil
}

var closers = map[byte]byte{')': '(', '}': '{', ']': '['}

func checkBalance(code string) []diagnostic {
	type open struct {
		ch        byte
		line, col int
	}
	var stack []open
	var diags []diagnostic
	line, col := 1, 1
	for i := 0; i < len(code); i++ {
		c := code[i]
		switch c {
		case '(', '{', '[':
			stack = append(stack, open{c, line, col})
		case ')', '}', ']':
			if len(stack) == 0 || stack[len(stack)-1].ch != closers[c] {
				diags = append(diags, diagnostic{line, col, fmt.Sprintf("extraneous closing '%c'", c)})
			} else {
				stack = stack[:len(stack)-1]
			}
		case '\n':
			line++
			col = 0
		}
		col++
	}
	for _, o := range stack {
		diags = append(diags, diagnostic{o.line, o.col, fmt.Sprintf("unmatched '%c'", o.ch)})
	}
	return diags
}

func declarations(code string) ([]declaration, []diagnostic) {
	matches := kernelDecl.FindAllStringSubmatchIndex(code, -1)
	if len(matches) == 0 {
		return nil, []diagnostic{{1, 1, "no kernel functions declared"}}
	}
	seen := make(map[string]bool, len(matches))
	var decls []declaration
	var diags []diagnostic
	for _, m := range matches {
		name := code[m[2]:m[3]]
		line := 1 + strings.Count(code[:m[0]], "\n")
		if seen[name] {
			diags = append(diags, diagnostic{line, 1, fmt.Sprintf("redefinition of '%s'", name)})
			continue
		}
		seen[name] = true
		decls = append(decls, declaration{name: name, params: countParams(code[m[4]:m[5]]), line: line})
	}
	return decls, diags
}

func countParams(list string) int {
	list = strings.TrimSpace(list)
	if list == "" || list == "void" {
		return 0
	}
	return strings.Count(list, ",") + 1
}

type program struct {
	driver   *Driver
	source   string
	decls    map[string]declaration
	built    bool
	log      string
	released bool
}

func (p *program) Build(devices []compute.NativeDevice, _ string) error {
	if err := p.driver.call(OpBuild); err != nil {
		p.log = err.Error()
		return err
	}
	if len(devices) == 0 {
		return &compute.StatusError{Code: compute.StatusInvalidValue, Err: fmt.Errorf("hostcl: build without devices")}
	}
	decls, log := compile(p.source)
	p.log = log
	if log != "" {
		return &compute.StatusError{Code: compute.StatusBuildProgramFailure, Err: fmt.Errorf("hostcl: build program failure")}
	}
	p.decls = make(map[string]declaration, len(decls))
	for _, d := range decls {
		p.decls[d.name] = d
	}
	p.built = true
	return nil
}

func (p *program) BuildLog(compute.NativeDevice) (string, error) {
	if err := p.driver.call(OpBuildLog); err != nil {
		return "", err
	}
	return p.log, nil
}

func (p *program) CreateKernel(name string) (compute.NativeKernel, error) {
	if err := p.driver.call(OpKernel); err != nil {
		return nil, err
	}
	if !p.built {
		return nil, &compute.StatusError{Code: compute.StatusInvalidProgramExecutable, Err: fmt.Errorf("hostcl: program not built")}
	}
	decl, ok := p.decls[name]
	if !ok {
		return nil, &compute.StatusError{Code: compute.StatusInvalidKernelName, Err: fmt.Errorf("hostcl: no kernel %q in program", name)}
	}
	fn, ok := p.driver.kernels[name]
	if !ok {
		return nil, &compute.StatusError{Code: compute.StatusInvalidKernelName, Err: fmt.Errorf("hostcl: kernel %q has no host implementation", name)}
	}
	p.driver.acquire()
	return &kernel{driver: p.driver, name: name, fn: fn, args: make([]*buffer, decl.params)}, nil
}

func (p *program) Release() {
	if p.released {
		return
	}
	p.released = true
	p.driver.drop()
}
