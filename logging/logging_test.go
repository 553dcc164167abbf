package logging

import (
	"bytes"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func TestNewWrapsLogrus(t *testing.T) {
	var buf bytes.Buffer
	base := logrus.New()
	base.SetOutput(&buf)
	base.SetLevel(logrus.DebugLevel)

	log := New(base)
	log.Debugf("hello %s", "world")
	log.Infof("info %d", 1)
	log.Errorf("err")

	require.Contains(t, buf.String(), "hello world")
	require.Contains(t, buf.String(), "info 1")
}

func TestNewJSONRejectsBadLevel(t *testing.T) {
	_, err := NewJSON("not-a-level")
	require.Error(t, err)
}

func TestNewJSONAcceptsValidLevel(t *testing.T) {
	l, err := NewJSON("debug")
	require.NoError(t, err)
	require.Equal(t, logrus.DebugLevel, l.GetLevel())
}
