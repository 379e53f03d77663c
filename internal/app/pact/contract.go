package pact

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"regexp"
	"strings"

	"github.com/pkg/errors"
)

const SpecificationVersion = "2.0.0"

var whitespace = regexp.MustCompile(`\s`)

type Pacticipant struct {
	Name string `json:"name"`
}

type Metadata struct {
	PactSpecification struct {
		Version string `json:"version"`
	} `json:"pactSpecification"`
}

// Contract is the ordered set of interactions one consumer expects from one provider.
type Contract struct {
	Consumer     Pacticipant   `json:"consumer"`
	Provider     Pacticipant   `json:"provider"`
	Interactions []Interaction `json:"interactions"`
	Metadata     Metadata      `json:"metadata"`

	// Publication metadata, not part of the contract content.
	ConsumerVersion string `json:"-"`
	ConsumerBranch  string `json:"-"`
}

func New(consumer, provider string) *Contract {
	c := &Contract{
		Consumer:     Pacticipant{Name: consumer},
		Provider:     Pacticipant{Name: provider},
		Interactions: []Interaction{},
	}
	c.Metadata.PactSpecification.Version = SpecificationVersion
	return c
}

func (c *Contract) AddInteraction(interaction Interaction) {
	c.Interactions = append(c.Interactions, interaction)
}

// Validate reports a schema error for a contract that must not be published.
func (c *Contract) Validate() error {
	if strings.TrimSpace(c.Consumer.Name) == "" {
		return schemaErrorf("contract has no consumer name")
	}
	if strings.TrimSpace(c.Provider.Name) == "" {
		return schemaErrorf("contract has no provider name")
	}
	if len(c.Interactions) == 0 {
		return schemaErrorf("contract between %s and %s has no interactions", c.Consumer.Name, c.Provider.Name)
	}

	seen := make(map[string]Interaction, len(c.Interactions))
	for _, interaction := range c.Interactions {
		if err := interaction.validate(); err != nil {
			return err
		}
		if previous, ok := seen[interaction.ID()]; ok && !reflect.DeepEqual(previous, interaction) {
			return schemaErrorf("conflicting interactions for '%s'", interaction.ID())
		}
		seen[interaction.ID()] = interaction
	}
	return nil
}

// ID is the SHA-1 of the contract content.
func (c *Contract) ID() (string, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return "", errors.Wrap(err, "unable to encode contract")
	}
	sum := sha1.Sum(data)
	return hex.EncodeToString(sum[:]), nil
}

func (c *Contract) Marshal() ([]byte, error) {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "unable to encode contract")
	}
	return data, nil
}

func (c *Contract) FileName() string {
	return fileNamePart(c.Consumer.Name) + "-" + fileNamePart(c.Provider.Name) + ".json"
}

func fileNamePart(name string) string {
	return whitespace.ReplaceAllString(strings.ToLower(name), "_")
}

// WriteFile writes the contract into dir, replacing any previous file for the same pair.
func (c *Contract) WriteFile(dir string) (string, error) {
	data, err := c.Marshal()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.Wrapf(err, "unable to create pact directory %s", dir)
	}
	path := filepath.Join(dir, c.FileName())
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", errors.Wrapf(err, "unable to write pact file %s", path)
	}
	return path, nil
}

func Load(data []byte) (*Contract, error) {
	c := &Contract{}
	if err := json.Unmarshal(data, c); err != nil {
		return nil, errors.Wrap(err, "unable to parse contract")
	}
	if c.Metadata.PactSpecification.Version == "" {
		c.Metadata.PactSpecification.Version = SpecificationVersion
	}
	return c, nil
}

func LoadFile(path string) (*Contract, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to read pact file %s", path)
	}
	return Load(data)
}
