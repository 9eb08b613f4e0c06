package browse

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/Digital-Shane/show-score/internal/core"
	"github.com/Digital-Shane/show-score/internal/provider"
	"github.com/Digital-Shane/show-score/internal/tui/components"
	"github.com/Digital-Shane/show-score/internal/tui/theme"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/exp/teatest"
	"github.com/google/go-cmp/cmp"
)

func flag(v bool) *bool { return &v }

func rated(index, season, episode int, title string, rating float64, votes int, outlier *bool) core.RatedEpisode {
	return core.RatedEpisode{
		EpisodeRecord: core.EpisodeRecord{
			SeriesTitle: "Test Show",
			Season:      season,
			Episode:     episode,
			Title:       title,
			AirYear:     2020,
			ExternalID:  fmt.Sprintf("tt%07d", index),
		},
		Index:   index,
		Rating:  rating,
		Votes:   votes,
		Outlier: outlier,
	}
}

func testResult() *core.Result {
	k := 1.0
	return &core.Result{
		Title:  "Test Show",
		Year:   "2020",
		IMDbID: "tt0000100",
		Stddev: &k,
		Episodes: []core.RatedEpisode{
			rated(1, 1, 1, "Pilot", 8, 1200, flag(false)),
			rated(2, 1, 2, "Second", 8, 900, flag(false)),
			rated(3, 1, 3, "Third", 8, 800, flag(false)),
			rated(4, 1, 4, "Misfire", 2, 15000, flag(true)),
			rated(5, 2, 1, "Return", 7.5, 600, flag(false)),
		},
		Assembled: 6,
		Unmatched: 1,
		Outliers:  1,
	}
}

func startBrowseTestModel(t *testing.T, model tea.Model) *teatest.TestModel {
	t.Helper()
	tm := teatest.NewTestModel(t, model, teatest.WithInitialTermSize(100, 24))
	t.Cleanup(func() {
		_ = tm.Quit()
	})
	return tm
}

func waitForOutput(t *testing.T, tm *teatest.TestModel, contains string) {
	t.Helper()
	teatest.WaitFor(t, tm.Output(), func(b []byte) bool {
		return bytes.Contains(b, []byte(contains))
	}, teatest.WithDuration(2*time.Second), teatest.WithCheckInterval(25*time.Millisecond))
}

func TestBuildTreeGroupsEpisodesBySeason(t *testing.T) {
	tree := BuildTree(testResult(), theme.Default())

	type row struct {
		Season   int
		Children []string
	}
	var got []row
	for _, node := range tree.Nodes() {
		r := row{Season: node.Data().Season}
		for _, child := range node.Children() {
			r.Children = append(r.Children, child.Data().Episode.Title)
		}
		got = append(got, r)
	}

	want := []row{
		{Season: 1, Children: []string{"Pilot", "Second", "Third", "Misfire"}},
		{Season: 2, Children: []string{"Return"}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("BuildTree() mismatch (-want +got):\n%s", diff)
	}

	season := tree.Nodes()[0].Data()
	if !season.Banded || !season.Stat.Defined {
		t.Errorf("season 1 = %+v, want a defined band", season)
	}
	if season.Stat.Count != 4 {
		t.Errorf("season 1 count = %d, want 4", season.Stat.Count)
	}
}

func TestBuildTreeWithoutBand(t *testing.T) {
	result := testResult()
	result.Stddev = nil

	tree := BuildTree(result, theme.Default())
	if got := tree.Nodes()[0].Data().Banded; got {
		t.Error("Banded = true without a stddev, want false")
	}
}

func TestBuildTreeEmpty(t *testing.T) {
	tree := BuildTree(nil, theme.Default())
	if got := len(tree.Nodes()); got != 0 {
		t.Errorf("BuildTree(nil) has %d nodes, want 0", got)
	}
}

func TestScoreFormatter(t *testing.T) {
	tree := BuildTree(testResult(), theme.Default())
	season := tree.Nodes()[0]

	label, ok := components.ScoreFormatter(season)
	if !ok || label != "Season 1  avg 6.50  (4)" {
		t.Errorf("season label = %q, want %q", label, "Season 1  avg 6.50  (4)")
	}

	label, _ = components.ScoreFormatter(season.Children()[3])
	if label != "E04 Misfire  2.0" {
		t.Errorf("episode label = %q, want %q", label, "E04 Misfire  2.0")
	}
}

func TestBrowseModelFocusAndDetails(t *testing.T) {
	m := NewBrowseModel(testResult())

	node, ok := m.Focused()
	if !ok || node.Kind != components.NodeSeason || node.Season != 1 {
		t.Fatalf("Focused() = %+v, %v, want season 1", node, ok)
	}

	details := m.formatDetails(node)
	for _, want := range []string{"Season 1", "4 rated", "6.50", "Band", "Outliers"} {
		if !strings.Contains(details, want) {
			t.Errorf("season details missing %q:\n%s", want, details)
		}
	}

	m.TuiTreeModel.Tree.Move(context.Background(), 4)
	node, ok = m.Focused()
	if !ok || node.Kind != components.NodeEpisode || node.Episode.Title != "Misfire" {
		t.Fatalf("Focused() after move = %+v, want episode Misfire", node)
	}
	details = m.formatDetails(node)
	for _, want := range []string{"S01E04 Misfire", "2.0", "15,000", "outlier"} {
		if !strings.Contains(details, want) {
			t.Errorf("episode details missing %q:\n%s", want, details)
		}
	}
}

func TestBrowseModelTabTogglesFocus(t *testing.T) {
	m := NewBrowseModel(testResult())

	m.Update(tea.KeyMsg{Type: tea.KeyTab})
	if !m.detailsFocused {
		t.Fatal("detailsFocused = false after tab, want true")
	}

	// arrows scroll the details panel, not the tree
	m.Update(tea.KeyMsg{Type: tea.KeyDown})
	if node, _ := m.Focused(); node.Kind != components.NodeSeason {
		t.Errorf("tree focus moved while details focused: %+v", node)
	}

	m.Update(tea.KeyMsg{Type: tea.KeyTab})
	if m.detailsFocused {
		t.Error("detailsFocused = true after second tab, want false")
	}
}

func TestBrowseModelRendersAndQuits(t *testing.T) {
	tm := startBrowseTestModel(t, NewBrowseModel(testResult()))

	waitForOutput(t, tm, "5 rated")
	tm.Send(tea.KeyMsg{Type: tea.KeyEsc})

	final := tm.FinalModel(t, teatest.WithFinalTimeout(2*time.Second))
	if _, ok := final.(*BrowseModel); !ok {
		t.Fatalf("Final model type = %T, want *BrowseModel", final)
	}
}

func TestBrowseModelCounts(t *testing.T) {
	m := NewBrowseModel(testResult())
	got := m.countsText()
	want := "5 rated | 6 assembled | 0 skipped | 1 unmatched | 1 outliers at 1 σ"
	if got != want {
		t.Errorf("countsText() = %q, want %q", got, want)
	}
}

func TestBrowseModelEmptyResult(t *testing.T) {
	m := NewBrowseModel(&core.Result{Title: "Empty", IMDbID: "tt1"})
	if view := m.View(); !strings.Contains(view, "No rated episodes") {
		t.Errorf("View() = %q, want placeholder", view)
	}
}

func searchResults() []provider.SearchResult {
	return []provider.SearchResult{
		{Provider: "omdb", ID: "tt0944947", IMDbID: "tt0944947", Title: "Game of Thrones", Year: "2011"},
		{Provider: "tmdb", ID: "1399", Title: "Game of Thrones: Conquest", Year: "2019"},
	}
}

func TestResultLabel(t *testing.T) {
	results := searchResults()
	tests := []struct {
		name string
		res  provider.SearchResult
		want string
	}{
		{name: "imdb id", res: results[0], want: "Game of Thrones (2011)  tt0944947"},
		{name: "provider only", res: results[1], want: "Game of Thrones: Conquest (2019)  [tmdb]"},
		{name: "no year", res: provider.SearchResult{Provider: "tvdb", Title: "Lost"}, want: "Lost  [tvdb]"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := ResultLabel(tc.res); got != tc.want {
				t.Errorf("ResultLabel() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestPickerSelectsFocusedResult(t *testing.T) {
	picker := NewPickerModel("thrones", searchResults(), theme.Default())
	tm := startBrowseTestModel(t, picker)

	waitForOutput(t, tm, "Conquest")
	tm.Send(tea.KeyMsg{Type: tea.KeyDown})
	tm.Send(tea.KeyMsg{Type: tea.KeyEnter})

	final := tm.FinalModel(t, teatest.WithFinalTimeout(2*time.Second))
	model, ok := final.(*PickerModel)
	if !ok {
		t.Fatalf("Final model type = %T, want *PickerModel", final)
	}
	got, ok := model.Selected()
	if !ok {
		t.Fatal("Selected() ok = false, want true")
	}
	if diff := cmp.Diff(searchResults()[1], got); diff != "" {
		t.Errorf("Selected() mismatch (-want +got):\n%s", diff)
	}
}

func TestPickerDismissed(t *testing.T) {
	picker := NewPickerModel("thrones", searchResults(), theme.Default())
	tm := startBrowseTestModel(t, picker)

	waitForOutput(t, tm, "Game of Thrones")
	tm.Send(tea.KeyMsg{Type: tea.KeyEsc})

	final := tm.FinalModel(t, teatest.WithFinalTimeout(2*time.Second))
	if _, ok := final.(*PickerModel).Selected(); ok {
		t.Error("Selected() ok = true after esc, want false")
	}
}
