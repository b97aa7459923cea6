package cli

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/vetrina/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/vetrina/internal/core/domain"
	"github.com/custodia-labs/vetrina/internal/core/ports/driving"
	"github.com/custodia-labs/vetrina/internal/core/services"
)

// mockSearchService implements driving.SearchService.
type mockSearchService struct {
	results  []domain.ProductRecord
	stats    domain.CatalogStats
	err      error
	gotQuery string
	gotOpts  domain.SearchOptions
}

func (m *mockSearchService) Search(
	_ context.Context, query string, opts domain.SearchOptions,
) ([]domain.ProductRecord, error) {
	m.gotQuery = query
	m.gotOpts = opts
	return m.results, m.err
}

func (m *mockSearchService) Stats() domain.CatalogStats {
	return m.stats
}

func (m *mockSearchService) Product(_ context.Context, id string) (domain.ProductRecord, error) {
	for _, rec := range m.results {
		if rec.ID == id {
			return rec, nil
		}
	}
	return domain.ProductRecord{}, domain.NewError("product", id, domain.ErrNotFound, nil)
}

// mockChatService echoes messages and counts sessions.
type mockChatService struct {
	err      error
	messages []string
	sessions []string
	ended    []string
}

func (m *mockChatService) StartSession(_ context.Context) (string, error) {
	return "s-new", nil
}

func (m *mockChatService) Reply(_ context.Context, sessionID, message string) (*domain.ChatReply, error) {
	if m.err != nil {
		return nil, m.err
	}
	if sessionID == "" {
		sessionID = "s-new"
	}
	m.messages = append(m.messages, message)
	m.sessions = append(m.sessions, sessionID)
	return &domain.ChatReply{
		SessionID: sessionID,
		Text:      "Risposta: " + message,
		Products:  []domain.ProductRecord{{ID: "p1", Name: "Shampoo Idratante", Brand: "Wella"}},
	}, nil
}

func (m *mockChatService) EndSession(_ context.Context, sessionID string) error {
	m.ended = append(m.ended, sessionID)
	return nil
}

// mockBuilder implements driving.CatalogBuilder.
type mockBuilder struct {
	err      error
	gotDir   string
	products []domain.ProductRecord
}

func (m *mockBuilder) Build(
	_ context.Context, products []domain.ProductRecord, dir string,
) (*driving.BuildReport, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.gotDir = dir
	m.products = products
	return &driving.BuildReport{
		Products:   len(products),
		Dimensions: 768,
		Model:      "paraphrase-multilingual",
		IndexPath:  dir + "/products.index",
		DataPath:   dir + "/products_metadata.json",
	}, nil
}

type testServices struct {
	search  *mockSearchService
	chat    *mockChatService
	builder *mockBuilder
}

var testProducts = []domain.ProductRecord{
	{
		ID: "p1", Name: "Oil Reflections", Brand: "Wella", Category: "Olio",
		Price: 32.5, URL: "https://shop.example/p1",
		SimilarityScore: 1, MatchType: domain.MatchTypeKeyword,
	},
	{
		ID: "p2", Name: "Love Curl Cream", Brand: "Davines", Category: "Crema",
		SimilarityScore: 0.64, MatchType: domain.MatchTypeSemantic,
	},
}

// setupTestServices installs mock services and returns a cleanup func.
func setupTestServices() func() {
	_, cleanup := setupTestServicesWith()
	return cleanup
}

func setupTestServicesWith() (*testServices, func()) {
	ts := &testServices{
		search: &mockSearchService{
			results: testProducts,
			stats: domain.CatalogStats{
				TotalProducts: 2, IndexSize: 2, Loaded: true, KnownBrands: 2,
				Dimensions: 768, Backend: "flat", Metric: domain.MetricInnerProduct,
				ModelName: "paraphrase-multilingual",
			},
		},
		chat:    &mockChatService{},
		builder: &mockBuilder{},
	}

	SetServices(&Services{
		Search:   ts.search,
		Chat:     ts.chat,
		Settings: services.NewSettingsService(memory.NewConfigStore()),
		Builder:  ts.builder,
		LoadProducts: func(path string) ([]domain.ProductRecord, error) {
			if path == "missing.json" {
				return nil, domain.ErrNotFound
			}
			return []domain.ProductRecord{{ID: "a"}, {ID: "b"}, {ID: "c"}}, nil
		},
		VerifyCatalog: func(context.Context) (domain.CatalogStats, error) {
			return ts.search.stats, nil
		},
		CatalogDir: "/tmp/vetrina-catalog",
	})

	return ts, func() { SetServices(&Services{}) }
}

// resetFlags restores every flag in the tree to its default.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

// execute runs the root command with args and returns combined output.
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetIn(nil)
		resetFlags(rootCmd)
	})

	err := rootCmd.Execute()
	return buf.String(), err
}

func TestRootCmd_Flags(t *testing.T) {
	flag := rootCmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, flag)
	assert.Equal(t, "v", flag.Shorthand)

	require.NotNil(t, rootCmd.PersistentFlags().Lookup("config-dir"))
}

func TestRootCmd_Subcommands(t *testing.T) {
	names := make([]string, 0)
	for _, c := range rootCmd.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"search", "stats", "chat", "catalog", "mcp", "settings", "version"} {
		assert.Contains(t, names, want)
	}
}

func TestSetup_UsesFactory(t *testing.T) {
	var gotDir string
	released := false
	SetServiceFactory(func(dir string) (*Services, func(), error) {
		gotDir = dir
		return &Services{Search: &mockSearchService{}}, func() { released = true }, nil
	})
	defer func() {
		SetServiceFactory(nil)
		SetServices(&Services{})
	}()

	out, err := execute(t, "", "--config-dir", "/tmp/vetrina-test", "stats")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/vetrina-test", gotDir)
	assert.Contains(t, out, "not loaded")

	require.NotNil(t, cleanup)
	cleanup()
	cleanup = nil
	assert.True(t, released)
}

func TestSetup_FactoryError(t *testing.T) {
	SetServiceFactory(func(string) (*Services, func(), error) {
		return nil, nil, errors.New("config unreadable")
	})
	defer SetServiceFactory(nil)

	_, err := execute(t, "", "stats")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config unreadable")
}

func TestSetup_VersionSkipsFactory(t *testing.T) {
	called := false
	SetServiceFactory(func(string) (*Services, func(), error) {
		called = true
		return &Services{}, func() {}, nil
	})
	defer SetServiceFactory(nil)

	_, err := execute(t, "", "version")
	require.NoError(t, err)
	assert.False(t, called)
}
