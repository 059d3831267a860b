package ids_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/untoldecay/treehouse/internal/ids"
)

func TestNewIDsAreUniqueAndNonEmpty(t *testing.T) {
	n1, n2 := ids.NewNodeID(), ids.NewNodeID()
	assert.NotEmpty(t, n1)
	assert.NotEqual(t, n1, n2)

	e1, e2 := ids.NewEntityID(), ids.NewEntityID()
	assert.NotEmpty(t, e1)
	assert.NotEqual(t, e1, e2)

	t1, t2 := ids.NewTreeID(), ids.NewTreeID()
	assert.NotEmpty(t, t1)
	assert.NotEqual(t, t1, t2)
}
