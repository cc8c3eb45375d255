package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeSeeder struct {
	count  int
	seeded []SeedBook
}

func (f *fakeSeeder) CountBooks(ctx context.Context) (int, error) {
	return f.count, nil
}

func (f *fakeSeeder) SeedBooks(ctx context.Context, seeds []SeedBook) error {
	f.seeded = append(f.seeded, seeds...)
	return nil
}

func writeSeedFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "books.json")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestSeedCatalog(t *testing.T) {
	const seedJSON = `[
		{"title": "Dracula", "author": "Bram Stoker", "genre": "Horror"},
		{"title": "Emma", "author": "Jane Austen", "genre": "Romance"}
	]`

	tests := []struct {
		name    string
		count   int
		want    []SeedBook
		wantErr bool
	}{
		{
			name:  "empty catalog receives the full seed set",
			count: 0,
			want: []SeedBook{
				{Title: "Dracula", Author: "Bram Stoker", Genre: "Horror"},
				{Title: "Emma", Author: "Jane Austen", Genre: "Romance"},
			},
		},
		{
			name:  "populated catalog is left untouched",
			count: 3,
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seeder := &fakeSeeder{count: tt.count}
			path := writeSeedFile(t, seedJSON)

			err := SeedCatalog(context.Background(), seeder, path)
			require.NoError(t, err)
			require.Equal(t, tt.want, seeder.seeded)
		})
	}
}

func TestSeedCatalogMissingFileIsNotFatal(t *testing.T) {
	seeder := &fakeSeeder{}

	err := SeedCatalog(context.Background(), seeder, filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)
	require.Empty(t, seeder.seeded)
}

func TestSeedCatalogRejectsMalformedFile(t *testing.T) {
	seeder := &fakeSeeder{}
	path := writeSeedFile(t, `{"not": "a list"}`)

	err := SeedCatalog(context.Background(), seeder, path)
	require.Error(t, err)
	require.Empty(t, seeder.seeded)
}
