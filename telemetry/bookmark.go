package telemetry

import (
	"fmt"
	"log/slog"
)

// BookmarkType identifies the type of bookmark.
type BookmarkType string

const (
	BookmarkBreakthrough      BookmarkType = "breakthrough"
	BookmarkDiversityCollapse BookmarkType = "diversity_collapse"
	BookmarkPlateau           BookmarkType = "plateau"
)

// Bookmark marks a notable epoch.
type Bookmark struct {
	Type        BookmarkType `csv:"type"`
	Epoch       int          `csv:"epoch"`
	Description string       `csv:"description"`
}

// LogBookmark logs the bookmark using slog.
func (b Bookmark) LogBookmark() {
	slog.Info("bookmark",
		"type", string(b.Type),
		"epoch", b.Epoch,
		"description", b.Description,
	)
}

// BookmarkDetector watches epoch stats for breakthroughs, diversity collapse
// and fitness plateaus.
type BookmarkDetector struct {
	// Rolling history (circular buffer)
	history     []EpochStats
	historySize int
	historyIdx  int
	historyFull bool

	diversityFloor float64
	collapsed      bool
	plateauLogged  bool
}

// NewBookmarkDetector creates a detector with the given history size.
// Diversity below floor counts as a collapse.
func NewBookmarkDetector(historySize int, floor float64) *BookmarkDetector {
	if historySize < 3 {
		historySize = 3
	}
	return &BookmarkDetector{
		history:        make([]EpochStats, historySize),
		historySize:    historySize,
		diversityFloor: floor,
	}
}

// Check analyzes the latest stats and returns any triggered bookmarks.
func (bd *BookmarkDetector) Check(stats EpochStats) []Bookmark {
	var bookmarks []Bookmark

	history := bd.getHistory()
	if len(history) >= 2 {
		if b := bd.checkBreakthrough(stats, history); b != nil {
			bookmarks = append(bookmarks, *b)
		}
	}
	if b := bd.checkDiversityCollapse(stats); b != nil {
		bookmarks = append(bookmarks, *b)
	}

	bd.addToHistory(stats)

	if b := bd.checkPlateau(stats); b != nil {
		bookmarks = append(bookmarks, *b)
	}

	return bookmarks
}

func (bd *BookmarkDetector) addToHistory(stats EpochStats) {
	bd.history[bd.historyIdx] = stats
	bd.historyIdx = (bd.historyIdx + 1) % bd.historySize
	if bd.historyIdx == 0 {
		bd.historyFull = true
	}
}

func (bd *BookmarkDetector) getHistory() []EpochStats {
	if bd.historyFull {
		return bd.history
	}
	return bd.history[:bd.historyIdx]
}

// checkBreakthrough fires when the best score exceeds 1.5x the recent peak.
func (bd *BookmarkDetector) checkBreakthrough(stats EpochStats, history []EpochStats) *Bookmark {
	var peak, meanBest float64
	for i, h := range history {
		if i == 0 || h.Best > peak {
			peak = h.Best
		}
		meanBest += h.Best
	}
	meanBest /= float64(len(history))
	if peak <= 0 || stats.Best <= peak*1.5 {
		return nil
	}
	return &Bookmark{
		Type:        BookmarkBreakthrough,
		Epoch:       stats.Epoch,
		Description: fmt.Sprintf("best %.1f vs recent peak %.1f (mean %.1f)", stats.Best, peak, meanBest),
	}
}

// checkDiversityCollapse fires once each time diversity drops below the floor.
func (bd *BookmarkDetector) checkDiversityCollapse(stats EpochStats) *Bookmark {
	if stats.Populations < 2 {
		return nil
	}
	if stats.Diversity >= bd.diversityFloor {
		bd.collapsed = false
		return nil
	}
	if bd.collapsed {
		return nil
	}
	bd.collapsed = true
	return &Bookmark{
		Type:        BookmarkDiversityCollapse,
		Epoch:       stats.Epoch,
		Description: fmt.Sprintf("diversity %.3f below %.3f", stats.Diversity, bd.diversityFloor),
	}
}

// checkPlateau fires once when a full history window shows no improvement.
func (bd *BookmarkDetector) checkPlateau(stats EpochStats) *Bookmark {
	if !bd.historyFull {
		return nil
	}
	for _, h := range bd.history {
		if h.Improvement > 0 {
			bd.plateauLogged = false
			return nil
		}
	}
	if bd.plateauLogged {
		return nil
	}
	bd.plateauLogged = true
	return &Bookmark{
		Type:        BookmarkPlateau,
		Epoch:       stats.Epoch,
		Description: fmt.Sprintf("no improvement in %d epochs", bd.historySize),
	}
}
