package catalog

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/example/storefront/internal/db"
	"github.com/example/storefront/internal/models"
)

type memRepo struct {
	db.ProductRepository
	created []*models.Product
	failOn  string
}

func (m *memRepo) Create(_ context.Context, p *models.Product) (string, error) {
	if p.Name == m.failOn {
		return "", errors.New("write failed")
	}
	m.created = append(m.created, p)
	return "id-" + p.Name, nil
}

const sample = `
products:
  - name: Ankara Tote
    description: Hand-sewn tote bag
    price: 12500.50
    category: bags
    stock: 4
    featured: true
  - name: Kente Cap
    description: Woven cap
    price: 3000
    category: hats
    stock: 0
`

func TestLoad(t *testing.T) {
	entries, err := Load(strings.NewReader(sample))
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, int64(1250050), entries[0].Product(time.Time{}).Price)
	assert.True(t, entries[0].Featured)
	assert.Equal(t, 0, entries[1].Stock)
}

func TestLoad_Invalid(t *testing.T) {
	_, err := Load(strings.NewReader("products:\n  - name: X\n    description: d\n    category: c\n    price: -1\n"))
	assert.ErrorContains(t, err, "price")

	_, err = Load(strings.NewReader("products:\n  - name: X\n    colour: red\n"))
	assert.Error(t, err, "unknown fields are rejected")

	_, err = Load(strings.NewReader("products:\n  - description: d\n    category: c\n"))
	assert.ErrorContains(t, err, "name is required")
}

func TestSeed(t *testing.T) {
	entries, err := Load(strings.NewReader(sample))
	require.NoError(t, err)

	repo := &memRepo{}
	ids, err := Seed(context.Background(), repo, entries, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, []string{"id-Ankara Tote", "id-Kente Cap"}, ids)
	assert.Equal(t, int64(300000), repo.created[1].Price)
	assert.False(t, repo.created[0].CreatedAt.IsZero())

	repo = &memRepo{failOn: "Kente Cap"}
	ids, err = Seed(context.Background(), repo, entries, zap.NewNop())
	assert.Error(t, err)
	assert.Len(t, ids, 1)
}

func TestSampleCatalogIsValid(t *testing.T) {
	f, err := os.Open("../../data/catalog.yaml")
	require.NoError(t, err)
	defer f.Close()

	entries, err := Load(f)
	require.NoError(t, err)
	assert.NotEmpty(t, entries)
}
