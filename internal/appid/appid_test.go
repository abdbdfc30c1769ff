package appid

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetReturnsCopy(t *testing.T) {
	id := Get()
	require.Equal(t, "financemate", id.BinaryName)
	id.BinaryName = "changed"
	require.Equal(t, "financemate", Get().BinaryName)
}

func TestPrefix(t *testing.T) {
	require.Equal(t, "FINANCEMATE_", Get().Prefix())
	require.Equal(t, "APP_", (&Identity{EnvPrefix: "APP"}).Prefix())
	require.Equal(t, "FINANCEMATE_", (&Identity{}).Prefix())

	var nilID *Identity
	require.Equal(t, "FINANCEMATE_", nilID.Prefix())
	require.True(t, strings.HasSuffix(Get().Prefix(), "_"))
}

func TestTelemetryNamespace(t *testing.T) {
	require.Equal(t, "finance_mate", (&Identity{BinaryName: "Finance-Mate"}).TelemetryNamespace())
	require.Equal(t, "financemate", (&Identity{}).TelemetryNamespace())
}
