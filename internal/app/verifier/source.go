package verifier

import (
	"context"
	"os"
	"path/filepath"
	"sort"

	"github.com/form3tech-oss/sync-pact/internal/app/broker"
	"github.com/form3tech-oss/sync-pact/internal/app/pact"
	"github.com/pkg/errors"
)

// Contract is a contract to verify and where its results go.
type Contract struct {
	*pact.Contract
	Source            string
	Pending           bool
	PublishResultsURL string
}

type ContractSource interface {
	Contracts(ctx context.Context, provider string) ([]Contract, error)
}

// BrokerSource fetches contracts from a Pact Broker with consumer version selectors.
type BrokerSource struct {
	Client         *broker.Client
	Selectors      []broker.ConsumerVersionSelector
	EnablePending  bool
	ProviderBranch string
}

func (s *BrokerSource) Contracts(ctx context.Context, provider string) ([]Contract, error) {
	selectors := s.Selectors
	if len(selectors) == 0 {
		selectors = broker.DefaultSelectors()
	}
	pacts, err := s.Client.PactsForVerification(ctx, provider, broker.VerificationRequest{
		ConsumerVersionSelectors: selectors,
		IncludePendingStatus:     s.EnablePending,
		ProviderVersionBranch:    s.ProviderBranch,
	})
	if err != nil {
		return nil, err
	}

	contracts := make([]Contract, 0, len(pacts))
	for _, p := range pacts {
		contracts = append(contracts, Contract{
			Contract:          p.Contract,
			Source:            p.URL,
			Pending:           s.EnablePending && p.Pending,
			PublishResultsURL: p.PublishResultsURL,
		})
	}
	return contracts, nil
}

// FileSource reads pact files from disk. Directories contribute every *.json file they contain.
// Contracts read from files are never pending.
type FileSource struct {
	Paths []string
}

func (s *FileSource) Contracts(_ context.Context, provider string) ([]Contract, error) {
	files, err := s.files()
	if err != nil {
		return nil, err
	}

	var contracts []Contract
	for _, file := range files {
		c, err := pact.LoadFile(file)
		if err != nil {
			return nil, err
		}
		if c.Provider.Name != provider {
			continue
		}
		contracts = append(contracts, Contract{Contract: c, Source: file})
	}
	return contracts, nil
}

func (s *FileSource) files() ([]string, error) {
	var files []string
	for _, path := range s.Paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, errors.Wrapf(err, "unable to read pact source %s", path)
		}
		if !info.IsDir() {
			files = append(files, path)
			continue
		}
		matches, err := filepath.Glob(filepath.Join(path, "*.json"))
		if err != nil {
			return nil, errors.Wrapf(err, "unable to list pact files in %s", path)
		}
		sort.Strings(matches)
		files = append(files, matches...)
	}
	return files, nil
}
