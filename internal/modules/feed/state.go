package feed

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/shopspring/decimal"
	"github.com/vmihailenco/msgpack/v5"
)

// stateFile is the on-disk name of the persisted feed snapshot
const stateFile = "feed_state.msgpack"

// persistedState is the serialized form of the simulator's prices
type persistedState struct {
	Prices map[string]string `msgpack:"prices"`
}

// SaveState persists the current prices so a restart resumes the feed from
// where it left off instead of resetting to the universe start prices.
func (s *Simulator) SaveState(dataDir string) error {
	snapshot := s.Snapshot()

	state := persistedState{Prices: make(map[string]string, len(snapshot))}
	for _, q := range snapshot {
		state.Prices[q.Symbol] = q.Price.String()
	}

	data, err := msgpack.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode feed state: %w", err)
	}

	path := filepath.Join(dataDir, stateFile)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write feed state: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace feed state: %w", err)
	}

	s.log.Debug().Int("instruments", len(state.Prices)).Msg("Feed state saved")
	return nil
}

// LoadState restores previously persisted prices. Symbols outside the
// current universe and non-positive prices are skipped; a missing state file
// is not an error.
func (s *Simulator) LoadState(dataDir string) error {
	data, err := os.ReadFile(filepath.Join(dataDir, stateFile))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read feed state: %w", err)
	}

	var state persistedState
	if err := msgpack.Unmarshal(data, &state); err != nil {
		return fmt.Errorf("failed to decode feed state: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	restored := 0
	for symbol, priceStr := range state.Prices {
		inst, ok := s.instruments[symbol]
		if !ok {
			continue
		}
		price, err := decimal.NewFromString(priceStr)
		if err != nil || !price.IsPositive() {
			s.log.Warn().Str("symbol", symbol).Str("price", priceStr).Msg("Skipping invalid persisted price")
			continue
		}
		inst.Price = price
		restored++
	}

	s.log.Info().Int("restored", restored).Msg("Feed state restored")
	return nil
}
