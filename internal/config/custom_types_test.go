package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gopkg.in/yaml.v3"
)

func TestFlexBool_UnmarshalYAML(t *testing.T) {
	tests := []struct {
		in      string
		want    bool
		wantErr bool
	}{
		{"v: true", true, false},
		{"v: \"false\"", false, false},
		{"v: \"1\"", true, false},
		{"v: 0", false, false},
		{"v: 2", true, false},
		{"v: 0.0", false, false},
		{"v: yes", true, false},
		{"v: \"On\"", true, false},
		{"v: off", false, false},
		{"v: \"\"", false, false},
		{"v: \"maybe\"", false, true},
		{"v: [1]", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var out struct {
				V FlexBool `yaml:"v"`
			}
			err := yaml.Unmarshal([]byte(tt.in), &out)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, bool(out.V))
		})
	}
}
