package display

import (
	"testing"

	"go.viam.com/facebox/testutils"
)

func TestMain(m *testing.M) {
	testutils.VerifyTestMain(m)
}
