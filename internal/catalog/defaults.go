package catalog

// defaultConfig returns the built-in catalog: the canonical tools the
// dispatcher ships with, the aliases accepted for them, and the named groups
// that scope policies reference.
//
// Aliases cover legacy spellings. "bash" and "shell" fold to exec (the shell
// tool was renamed; the old names must keep resolving to the live tool, not
// to a removed literal). The run-together web spellings come from older skill
// manifests.
func defaultConfig() Config {
	return Config{
		Tools: []string{
			"read",
			"write",
			"edit",
			"apply_patch",
			"exec",
			"web_search",
			"web_fetch",
			"memory_search",
			"memory_get",
			"image",
			"sessions_spawn",
			"sessions_list",
			"skill_memory_write",
		},
		Aliases: map[string]string{
			"patch":      "apply_patch",
			"applypatch": "apply_patch",
			"bash":       "exec",
			"shell":      "exec",
			"websearch":  "web_search",
			"webfetch":   "web_fetch",
		},
		Groups: map[string][]string{
			"group:fs":       {"read", "write", "edit", "apply_patch"},
			"group:web":      {"web_search", "web_fetch"},
			"group:memory":   {"memory_search", "memory_get"},
			"group:sessions": {"sessions_spawn", "sessions_list"},
			"group:all": {
				"group:fs",
				"group:web",
				"group:memory",
				"group:sessions",
				"exec",
				"image",
				"skill_memory_write",
			},
		},
	}
}
