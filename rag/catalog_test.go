package rag_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suviet/agent/rag"
	"github.com/suviet/agent/testutil/mocks"
)

func TestBuildCatalogGroupsSourcesByCategory(t *testing.T) {
	t.Parallel()

	store := mocks.NewMockVectorStore(
		rag.Document{ID: "1", Content: "x", Metadata: map[string]any{"category": "Lich_Su_Chung", "source": "dai_viet_su_ky.md"}},
		rag.Document{ID: "2", Content: "y", Metadata: map[string]any{"category": "Lich_Su_Chung", "source": "dai_viet_su_ky.md"}},
		rag.Document{ID: "3", Content: "z", Metadata: map[string]any{"category": "Lich_Su_Chung", "source": "viet_nam_su_luoc.md"}},
		rag.Document{ID: "4", Content: "w", Metadata: map[string]any{"category": "Con_Nguoi", "source": "nhan_vat.md"}},
		rag.Document{ID: "5", Content: "v", Metadata: map[string]any{"source": "thieu_category.md"}},
	)

	catalog, err := rag.BuildCatalog(context.Background(), store)
	require.NoError(t, err)

	assert.Equal(t, []string{"Con_Nguoi", "Lich_Su_Chung"}, catalog.Categories())
	assert.Equal(t, []string{"dai_viet_su_ky.md", "viet_nam_su_luoc.md"}, catalog.Sources("Lich_Su_Chung"))
	assert.Nil(t, catalog.Sources("Khong_Ton_Tai"))
}

func TestCatalogSourcesDriveRetrievalFilter(t *testing.T) {
	t.Parallel()

	docs := []rag.Document{
		{ID: "1", Content: "vua lê thánh tông ban hành luật hồng đức", Metadata: map[string]any{"category": "Lich_Su_Chung", "source": "le.md"}},
		{ID: "2", Content: "vua lê thánh tông mở rộng lãnh thổ", Metadata: map[string]any{"category": "ChinhTri", "source": "chinh_tri.md"}},
	}
	store := mocks.NewMockVectorStore(docs...)
	idx := rag.NewLexicalIndex(store, rag.DefaultLexicalConfig(), nil)

	catalog, err := rag.BuildCatalog(context.Background(), store)
	require.NoError(t, err)

	results, err := idx.Search(context.Background(), "vua lê thánh tông", catalog.Sources("Lich_Su_Chung"))
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "le.md", rag.DocSource(results[0].Document.Metadata))
}
