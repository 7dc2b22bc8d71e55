// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOutlineAnchorPages(t *testing.T) {
	var o Outline
	intro := o.Add(-1, "Introduction", 1)
	o.Add(intro, "Scope", 3)
	o.Add(intro, "Terms", 1)
	body := o.Add(-1, "Body", 10)
	o.Add(body, "Details", 12)

	assert.Equal(t, []int{1, 10}, o.AnchorPages(1))
	assert.Equal(t, []int{1, 3, 10, 12}, o.AnchorPages(2))
	assert.Equal(t, []int{1, 3, 10, 12}, o.AnchorPages(0))
	assert.Empty(t, Outline{}.AnchorPages(0))
}
