package config

// Default configuration values.
const (
	DefaultSeedsDir  = "seeds"
	DefaultStateFile = ".leapscript/state.db"
	DefaultEnv       = "dev"
	DefaultTarget    = "duckdb"
)

// ApplyDefaults applies default values to a ProjectConfig.
func ApplyDefaults(c *ProjectConfig) {
	if c == nil {
		return
	}
	if c.SeedsDir == "" {
		c.SeedsDir = DefaultSeedsDir
	}
	if c.StatePath == "" {
		c.StatePath = DefaultStateFile
	}
	if c.Target == nil {
		c.Target = &TargetConfig{Type: DefaultTarget}
	}
	ApplyTargetDefaults(c.Target)
}

// ApplyTargetDefaults applies default values to a TargetConfig based on the target type.
func ApplyTargetDefaults(t *TargetConfig) {
	if t == nil {
		return
	}
	if t.Type == "" {
		t.Type = DefaultTarget
	}

	// Apply default schema based on type
	if t.Schema == "" {
		t.Schema = DefaultSchemaForType(t.Type)
	}

	// Apply type-specific defaults
	if t.Type == "postgres" {
		if t.Port == 0 {
			t.Port = 5432
		}
		if t.Host == "" {
			t.Host = "localhost"
		}
	}
}
