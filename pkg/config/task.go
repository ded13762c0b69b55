package config

import (
	"fmt"

	"github.com/srand/jolt/datasync/pkg/plugin"
	"github.com/srand/jolt/datasync/pkg/transformer"
)

// Reader or writer section of a task.
type PluginConfig struct {
	Name      string       `mapstructure:"name"`
	Parameter plugin.Param `mapstructure:"parameter"`
}

func (c *PluginConfig) Clone() *PluginConfig {
	if c == nil {
		return nil
	}
	return &PluginConfig{Name: c.Name, Parameter: c.Parameter.Clone()}
}

// One source to sink unit of work.
type TaskConfig struct {
	TaskID      int                  `mapstructure:"task_id"`
	Reader      *PluginConfig        `mapstructure:"reader"`
	Writer      *PluginConfig        `mapstructure:"writer"`
	Transformer []transformer.Config `mapstructure:"transformer"`
}

// Deep copy, so that a task attempt cannot alter the configuration of
// later attempts.
func (t *TaskConfig) Clone() *TaskConfig {
	out := &TaskConfig{
		TaskID: t.TaskID,
		Reader: t.Reader.Clone(),
		Writer: t.Writer.Clone(),
	}
	if t.Transformer != nil {
		out.Transformer = make([]transformer.Config, len(t.Transformer))
		for i, tc := range t.Transformer {
			tc.Args = append([]string(nil), tc.Args...)
			out.Transformer[i] = tc
		}
	}
	return out
}

func (t *TaskConfig) String() string {
	name := func(c *PluginConfig) string {
		if c == nil {
			return "<none>"
		}
		return c.Name
	}
	return fmt.Sprintf("task %d: %s -> %s (%d transformers)", t.TaskID, name(t.Reader), name(t.Writer), len(t.Transformer))
}
