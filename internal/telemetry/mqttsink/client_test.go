package mqttsink

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func TestNewClientRejectsUnsupportedScheme(t *testing.T) {
	_, err := newClient("http://broker.example:1883", "", logrus.New())
	require.Error(t, err)
}

func TestNewClientRejectsInvalidURL(t *testing.T) {
	_, err := newClient("://not-a-url", "", logrus.New())
	require.Error(t, err)
}
