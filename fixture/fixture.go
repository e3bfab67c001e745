package fixture

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/poiesic/kinfolk/ai"
	"github.com/poiesic/kinfolk/core"
	"github.com/poiesic/kinfolk/storage"
	"gopkg.in/yaml.v3"
)

// Fixture is the decoded content of a seed file.
type Fixture struct {
	Passages      []Passage      `yaml:"passages"`
	Persons       []Person       `yaml:"persons"`
	Relationships []Relationship `yaml:"relationships"`
	Facts         []Fact         `yaml:"facts"`
}

type Passage struct {
	Source  string `yaml:"source"`
	Locator string `yaml:"locator"`
	Text    string `yaml:"text"`
}

type Person struct {
	Key        string `yaml:"key"`
	GivenName  string `yaml:"given_name"`
	MiddleName string `yaml:"middle_name"`
	Surname    string `yaml:"surname"`
	MaidenName string `yaml:"maiden_name"`
	BirthYear  int    `yaml:"birth_year"`
	BirthPlace string `yaml:"birth_place"`
	DeathYear  int    `yaml:"death_year"`
	DeathPlace string `yaml:"death_place"`
	Source     string `yaml:"source"`
	Locator    string `yaml:"locator"`
}

type Relationship struct {
	Type      string `yaml:"type"`
	Person    string `yaml:"person"`
	Related   string `yaml:"related"`
	StartYear int    `yaml:"start_year"`
	Source    string `yaml:"source"`
	Locator   string `yaml:"locator"`
}

type Fact struct {
	Person      string `yaml:"person"`
	Type        string `yaml:"type"`
	Year        int    `yaml:"year"`
	Place       string `yaml:"place"`
	Description string `yaml:"description"`
	Source      string `yaml:"source"`
	Locator     string `yaml:"locator"`
}

// Summary counts what Apply stored.
type Summary struct {
	Passages      int
	Persons       int
	Relationships int
	Facts         int
}

// Load reads the fixture file at path.
func Load(path string) (*Fixture, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open fixture: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

// Decode reads a fixture from r and checks its person references.
func Decode(r io.Reader) (*Fixture, error) {
	var fx Fixture
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&fx); err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to parse fixture: %w", err)
	}
	if err := fx.check(); err != nil {
		return nil, err
	}
	return &fx, nil
}

func (fx *Fixture) check() error {
	keys := make(map[string]bool, len(fx.Persons))
	for _, p := range fx.Persons {
		if keys[p.Key] {
			return fmt.Errorf("%w: %q", ErrDuplicateKey, p.Key)
		}
		keys[p.Key] = true
	}
	for _, r := range fx.Relationships {
		for _, k := range []string{r.Person, r.Related} {
			if !keys[k] {
				return fmt.Errorf("%w: %q in %s relationship", ErrUnknownPerson, k, r.Type)
			}
		}
	}
	for _, f := range fx.Facts {
		if !keys[f.Person] {
			return fmt.Errorf("%w: %q in %s fact", ErrUnknownPerson, f.Person, f.Type)
		}
	}
	return nil
}

// Apply embeds and stores the passages, then stores persons, relationships
// and facts. embedder may be nil when the fixture has no passages.
func (fx *Fixture) Apply(ctx context.Context, passages storage.PassageRepository, genealogy storage.GenealogyRepository, embedder ai.Embedder, logger *slog.Logger) (Summary, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "fixture")
	var summary Summary

	if len(fx.Passages) > 0 {
		if embedder == nil {
			return summary, ErrEmbedderRequired
		}
		texts := make([]string, len(fx.Passages))
		for i, p := range fx.Passages {
			texts[i] = p.Text
		}
		vectors, err := embedder.EmbedTexts(ctx, texts)
		if err != nil {
			return summary, fmt.Errorf("failed to embed passages: %w", err)
		}
		records := make([]*core.Passage, len(fx.Passages))
		for i, p := range fx.Passages {
			records[i] = &core.Passage{SourceID: p.Source, Locator: p.Locator, Text: p.Text, Vector: vectors[i]}
		}
		added, err := passages.AddPassages(ctx, records...)
		if err != nil {
			return summary, fmt.Errorf("failed to store passages: %w", err)
		}
		summary.Passages = len(added)
	}

	persons := make([]*core.Person, len(fx.Persons))
	for i, p := range fx.Persons {
		persons[i] = &core.Person{
			GivenName:  p.GivenName,
			MiddleName: p.MiddleName,
			Surname:    p.Surname,
			MaidenName: p.MaidenName,
			BirthYear:  p.BirthYear,
			BirthPlace: p.BirthPlace,
			DeathYear:  p.DeathYear,
			DeathPlace: p.DeathPlace,
			SourceID:   p.Source,
			Locator:    p.Locator,
		}
	}
	ids := make(map[string]core.ID, len(persons))
	if len(persons) > 0 {
		added, err := genealogy.AddPersons(ctx, persons...)
		if err != nil {
			return summary, fmt.Errorf("failed to store persons: %w", err)
		}
		for i, p := range added {
			ids[fx.Persons[i].Key] = p.Id
		}
		summary.Persons = len(added)
	}

	if len(fx.Relationships) > 0 {
		rels := make([]*core.Relationship, len(fx.Relationships))
		for i, r := range fx.Relationships {
			rels[i] = &core.Relationship{
				PersonID:  ids[r.Person],
				RelatedID: ids[r.Related],
				Type:      r.Type,
				StartYear: r.StartYear,
				SourceID:  r.Source,
				Locator:   r.Locator,
			}
		}
		added, err := genealogy.AddRelationships(ctx, rels...)
		if err != nil {
			return summary, fmt.Errorf("failed to store relationships: %w", err)
		}
		summary.Relationships = len(added)
	}

	if len(fx.Facts) > 0 {
		facts := make([]*core.Fact, len(fx.Facts))
		for i, f := range fx.Facts {
			facts[i] = &core.Fact{
				PersonID:    ids[f.Person],
				Type:        core.ParsePredicate(f.Type),
				Year:        f.Year,
				Place:       f.Place,
				Description: f.Description,
				SourceID:    f.Source,
				Locator:     f.Locator,
			}
		}
		added, err := genealogy.AddFacts(ctx, facts...)
		if err != nil {
			return summary, fmt.Errorf("failed to store facts: %w", err)
		}
		summary.Facts = len(added)
	}

	logger.Info("fixture applied",
		"passages", summary.Passages,
		"persons", summary.Persons,
		"relationships", summary.Relationships,
		"facts", summary.Facts)
	return summary, nil
}
