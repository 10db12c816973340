package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGetEnv(t *testing.T) {
	t.Setenv("PF_TEST_STR", "  value ")
	assert.Equal(t, "value", GetEnv("PF_TEST_STR", "def"))

	t.Setenv("PF_TEST_STR", "")
	assert.Equal(t, "def", GetEnv("PF_TEST_STR", "def"))
}

func TestGetEnvInt(t *testing.T) {
	t.Setenv("PF_TEST_INT", "7")
	assert.Equal(t, 7, GetEnvInt("PF_TEST_INT", 1))

	t.Setenv("PF_TEST_INT", "seven")
	assert.Equal(t, 1, GetEnvInt("PF_TEST_INT", 1), "invalid values fall back to the default")
}

func TestGetEnvFloat(t *testing.T) {
	t.Setenv("PF_TEST_FLOAT", "2.5")
	assert.Equal(t, 2.5, GetEnvFloat("PF_TEST_FLOAT", 1))

	t.Setenv("PF_TEST_FLOAT", "x")
	assert.Equal(t, 1.0, GetEnvFloat("PF_TEST_FLOAT", 1))
}

func TestGetEnvDuration(t *testing.T) {
	t.Setenv("PF_TEST_DUR", "45s")
	assert.Equal(t, 45*time.Second, GetEnvDuration("PF_TEST_DUR", time.Second))

	t.Setenv("PF_TEST_DUR", "soon")
	assert.Equal(t, time.Second, GetEnvDuration("PF_TEST_DUR", time.Second))
}

func TestGetEnvList(t *testing.T) {
	def := []string{"a"}

	t.Setenv("PF_TEST_LIST", " plumbing , ,tga,")
	assert.Equal(t, []string{"plumbing", "tga"}, GetEnvList("PF_TEST_LIST", def))

	t.Setenv("PF_TEST_LIST", " , ")
	assert.Equal(t, def, GetEnvList("PF_TEST_LIST", def))

	t.Setenv("PF_TEST_LIST", "")
	assert.Equal(t, def, GetEnvList("PF_TEST_LIST", def))
}
