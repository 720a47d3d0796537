// Package catalog описывает неизменяемый каталог рангов и апгрейдов магазина.
//
// Каталог строится один раз при старте приложения (из встроенных значений или
// из YAML-файла) и после этого только читается. Цена из каталога — единственный
// источник истины при проверке покупки.
package catalog

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/magabrotheeeer/rankshop/internal/models"
)

// Ladder — независимая лестница рангов.
type Ladder string

const (
	LadderServerwide Ladder = "serverwide"
	LadderTowny      Ladder = "towny"
)

// ErrInvalidCatalog возвращается при нарушении целостности каталога.
var ErrInvalidCatalog = errors.New("invalid catalog")

// Rank — определение покупаемого ранга.
type Rank struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Ladder       Ladder        `json:"ladder"`
	Tier         int           `json:"tier"`
	Price        models.Money  `json:"price"`
	Description  string        `json:"description"`
	Features     []string      `json:"features"`
	RequiresRank string        `json:"requires_rank,omitempty"`
	Duration     time.Duration `json:"-"`
}

// Upgrade — допустимый переход между соседними рангами одной лестницы.
type Upgrade struct {
	ID          string       `json:"id"`
	From        string       `json:"from"`
	To          string       `json:"to"`
	Price       models.Money `json:"price"`
	Description string       `json:"description"`
	Features    []string     `json:"features"`
}

// Catalog хранит ранги и апгрейды. Методы безопасны для конкурентного чтения.
type Catalog struct {
	ranks    map[string]Rank
	upgrades map[string]Upgrade
	rankIDs  []string
	upIDs    []string
}

// New проверяет и собирает каталог.
func New(ranks []Rank, upgrades []Upgrade) (*Catalog, error) {
	const op = "catalog.New"

	c := &Catalog{
		ranks:    make(map[string]Rank, len(ranks)),
		upgrades: make(map[string]Upgrade, len(upgrades)),
	}

	for _, r := range ranks {
		if r.ID == "" || r.Name == "" {
			return nil, fmt.Errorf("%s: %w: rank without id or name", op, ErrInvalidCatalog)
		}
		if _, dup := c.ranks[r.ID]; dup {
			return nil, fmt.Errorf("%s: %w: duplicate rank %q", op, ErrInvalidCatalog, r.ID)
		}
		if r.Price <= 0 {
			return nil, fmt.Errorf("%s: %w: rank %q has non-positive price", op, ErrInvalidCatalog, r.ID)
		}
		if r.Ladder != LadderServerwide && r.Ladder != LadderTowny {
			return nil, fmt.Errorf("%s: %w: rank %q has unknown ladder %q", op, ErrInvalidCatalog, r.ID, r.Ladder)
		}
		r.Features = slices.Clone(r.Features)
		c.ranks[r.ID] = r
		c.rankIDs = append(c.rankIDs, r.ID)
	}

	for _, r := range c.ranks {
		if r.RequiresRank == "" {
			continue
		}
		if _, ok := c.ranks[r.RequiresRank]; !ok {
			return nil, fmt.Errorf("%s: %w: rank %q requires unknown rank %q", op, ErrInvalidCatalog, r.ID, r.RequiresRank)
		}
	}

	for _, u := range upgrades {
		if u.ID == "" {
			return nil, fmt.Errorf("%s: %w: upgrade without id", op, ErrInvalidCatalog)
		}
		if _, dup := c.upgrades[u.ID]; dup {
			return nil, fmt.Errorf("%s: %w: duplicate upgrade %q", op, ErrInvalidCatalog, u.ID)
		}
		if u.Price <= 0 {
			return nil, fmt.Errorf("%s: %w: upgrade %q has non-positive price", op, ErrInvalidCatalog, u.ID)
		}
		from, okFrom := c.ranks[u.From]
		to, okTo := c.ranks[u.To]
		if !okFrom || !okTo {
			return nil, fmt.Errorf("%s: %w: upgrade %q references unknown rank", op, ErrInvalidCatalog, u.ID)
		}
		if from.Ladder != to.Ladder || to.Tier != from.Tier+1 {
			return nil, fmt.Errorf("%s: %w: upgrade %q must move one tier up within a ladder", op, ErrInvalidCatalog, u.ID)
		}
		u.Features = slices.Clone(u.Features)
		c.upgrades[u.ID] = u
		c.upIDs = append(c.upIDs, u.ID)
	}

	sort.SliceStable(c.rankIDs, func(i, j int) bool {
		a, b := c.ranks[c.rankIDs[i]], c.ranks[c.rankIDs[j]]
		if a.Ladder != b.Ladder {
			return a.Ladder < b.Ladder
		}
		return a.Tier < b.Tier
	})
	sort.SliceStable(c.upIDs, func(i, j int) bool {
		a, b := c.ranks[c.upgrades[c.upIDs[i]].From], c.ranks[c.upgrades[c.upIDs[j]].From]
		if a.Ladder != b.Ladder {
			return a.Ladder < b.Ladder
		}
		return a.Tier < b.Tier
	})

	return c, nil
}

// Rank возвращает ранг по идентификатору. false означает неизвестный id.
func (c *Catalog) Rank(id string) (Rank, bool) {
	r, ok := c.ranks[id]
	if !ok {
		return Rank{}, false
	}
	r.Features = slices.Clone(r.Features)
	return r, true
}

// Upgrade возвращает апгрейд по идентификатору.
func (c *Catalog) Upgrade(id string) (Upgrade, bool) {
	u, ok := c.upgrades[id]
	if !ok {
		return Upgrade{}, false
	}
	u.Features = slices.Clone(u.Features)
	return u, true
}

// RankName возвращает название ранга или сам id для неизвестного ранга.
func (c *Catalog) RankName(id string) string {
	if r, ok := c.ranks[id]; ok {
		return r.Name
	}
	return id
}

// Ranks возвращает все ранги, упорядоченные по лестнице и уровню.
func (c *Catalog) Ranks() []Rank {
	out := make([]Rank, 0, len(c.rankIDs))
	for _, id := range c.rankIDs {
		r, _ := c.Rank(id)
		out = append(out, r)
	}
	return out
}

// Upgrades возвращает все апгрейды в порядке лестниц.
func (c *Catalog) Upgrades() []Upgrade {
	out := make([]Upgrade, 0, len(c.upIDs))
	for _, id := range c.upIDs {
		u, _ := c.Upgrade(id)
		out = append(out, u)
	}
	return out
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
)

// Default возвращает встроенный каталог, построенный при первом обращении.
func Default() *Catalog {
	defaultOnce.Do(func() {
		c, err := New(defaultRanks(), defaultUpgrades())
		if err != nil {
			panic(err)
		}
		defaultCatalog = c
	})
	return defaultCatalog
}

// Load читает каталог из YAML-файла. Пустой путь означает встроенный каталог.
func Load(path string) (*Catalog, error) {
	const op = "catalog.Load"
	if path == "" {
		return Default(), nil
	}

	var f file
	if err := cleanenv.ReadConfig(path, &f); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	ranks, upgrades, err := f.convert()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	c, err := New(ranks, upgrades)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return c, nil
}
