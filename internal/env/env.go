package env

import (
	"os"
	"strings"
)

// CredentialPrefix is the ecosystem naming convention under which decrypted
// credentials are exported for consuming tasks (Terraform picks up TF_VAR_*).
const CredentialPrefix = "TF_VAR_"

type Var map[string]string

type Env struct {
	Var Var // global variables (K->V)
	env Var // cached base from OS environment
}

func New() *Env {
	return &Env{
		Var: make(Var),
	}
}

// FromOS caches the current process environment as the base.
func (e *Env) FromOS() {
	base := make(Var)
	for _, kv := range os.Environ() {
		if i := strings.IndexByte(kv, '='); i >= 0 {
			k := kv[:i]
			v := kv[i+1:]
			if k == "" {
				continue
			}
			base[k] = v
		}
	}
	e.env = base
}

// Set sets a global variable K=V.
func (e *Env) Set(k, v string) {
	if e.Var == nil {
		e.Var = make(Var)
	}
	e.Var[k] = v
}

// Unset removes a global variable.
func (e *Env) Unset(k string) {
	if e.Var != nil {
		delete(e.Var, k)
	}
}

// SetCredentials exports decrypted credential records as global variables
// under CredentialPrefix. Values only live in process memory; nothing is
// written back to disk.
func (e *Env) SetCredentials(records map[string]string) {
	for name, value := range records {
		if name == "" {
			continue
		}
		e.Set(CredentialPrefix+name, value)
	}
}

// Merge composes the final environment list applying order:
// base = cached OS env (only when FromOS was called), then global e.Var
// overrides, then perTask ("K=V" slice) overrides. ${VAR} expansion is
// performed against the composed map (simple expansion, no recursion).
func (e *Env) Merge(perTask []string) []string {
	m := make(Var)
	for k, v := range e.env {
		m[k] = v
	}
	for k, v := range e.Var {
		if k == "" {
			continue
		}
		m[k] = v
	}
	for _, kv := range perTask {
		if i := strings.IndexByte(kv, '='); i >= 0 {
			k := kv[:i]
			v := kv[i+1:]
			if k == "" { // skip malformed entries with empty key
				continue
			}
			m[k] = v
		}
	}
	expanded := make(Var, len(m))
	for k, v := range m {
		expanded[k] = expand(v, m)
	}
	out := make([]string, 0, len(expanded))
	for k, v := range expanded {
		if k == "" {
			continue
		}
		out = append(out, k+"="+v)
	}
	return out
}

func expand(s string, m Var) string {
	res := s
	for k, v := range m {
		res = strings.ReplaceAll(res, "${"+k+"}", v)
	}
	return res
}
