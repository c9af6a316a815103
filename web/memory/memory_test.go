package memory_test

import (
	"testing"

	"github.com/housinglord/housing-lord/models"
	"github.com/housinglord/housing-lord/storetest"
	"github.com/housinglord/housing-lord/web/memory"
)

func TestStore(t *testing.T) {
	storetest.Run(t, func(*testing.T) models.Store {
		return memory.New()
	})
}
