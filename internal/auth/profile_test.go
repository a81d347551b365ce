package auth

import (
	"context"
	"testing"

	"captionrate/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfiles_Upsert(t *testing.T) {
	p := &Profiles{DB: testutil.NewDB(t, &Profile{})}
	ctx := context.Background()

	first, err := p.Upsert(ctx, Identity{Provider: ProviderGoogle, Subject: "g-1", Email: "ada@example.com"})
	require.NoError(t, err)
	assert.NotEmpty(t, first.ID)

	again, err := p.Upsert(ctx, Identity{Provider: ProviderGoogle, Subject: "g-1", Email: "ada@example.com"})
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)

	renamed, err := p.Upsert(ctx, Identity{Provider: ProviderGoogle, Subject: "g-1", Email: "countess@example.com"})
	require.NoError(t, err)
	assert.Equal(t, first.ID, renamed.ID)
	assert.Equal(t, "countess@example.com", renamed.Email)

	other, err := p.Upsert(ctx, Identity{Provider: ProviderGoogle, Subject: "g-2", Email: "grace@example.com"})
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, other.ID)

	var count int64
	require.NoError(t, p.DB.Model(&Profile{}).Count(&count).Error)
	assert.Equal(t, int64(2), count)
}
