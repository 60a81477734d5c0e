package models

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/schema"
)

func TestAuthorRelationsDoNotCascade(t *testing.T) {
	cache := &sync.Map{}
	for _, m := range []interface{}{&Post{}, &Comment{}} {
		s, err := schema.Parse(m, cache, schema.NamingStrategy{})
		require.NoError(t, err)
		rel, ok := s.Relationships.Relations["User"]
		require.True(t, ok, s.Name)
		if c := rel.ParseConstraint(); c != nil {
			assert.Empty(t, c.OnDelete, "%s author", s.Name)
			assert.Empty(t, c.OnUpdate, "%s author", s.Name)
		}
	}
}
