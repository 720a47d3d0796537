package catalog

import (
	"fmt"
	"time"

	"github.com/magabrotheeeer/rankshop/internal/models"
)

// file — формат YAML-файла каталога. Цены записываются десятичными числами.
type file struct {
	Ranks []struct {
		ID           string   `yaml:"id"`
		Name         string   `yaml:"name"`
		Ladder       string   `yaml:"ladder"`
		Tier         int      `yaml:"tier"`
		Price        string   `yaml:"price"`
		Description  string   `yaml:"description"`
		Features     []string `yaml:"features"`
		RequiresRank string   `yaml:"requires_rank"`
		DurationDays int      `yaml:"duration_days"`
	} `yaml:"ranks"`
	Upgrades []struct {
		ID          string   `yaml:"id"`
		From        string   `yaml:"from"`
		To          string   `yaml:"to"`
		Price       string   `yaml:"price"`
		Description string   `yaml:"description"`
		Features    []string `yaml:"features"`
	} `yaml:"upgrades"`
}

func (f file) convert() ([]Rank, []Upgrade, error) {
	ranks := make([]Rank, 0, len(f.Ranks))
	for _, r := range f.Ranks {
		price, err := models.ParseMoney(r.Price)
		if err != nil {
			return nil, nil, fmt.Errorf("rank %q: %w", r.ID, err)
		}
		ranks = append(ranks, Rank{
			ID:           r.ID,
			Name:         r.Name,
			Ladder:       Ladder(r.Ladder),
			Tier:         r.Tier,
			Price:        price,
			Description:  r.Description,
			Features:     r.Features,
			RequiresRank: r.RequiresRank,
			Duration:     time.Duration(r.DurationDays) * 24 * time.Hour,
		})
	}

	upgrades := make([]Upgrade, 0, len(f.Upgrades))
	for _, u := range f.Upgrades {
		price, err := models.ParseMoney(u.Price)
		if err != nil {
			return nil, nil, fmt.Errorf("upgrade %q: %w", u.ID, err)
		}
		upgrades = append(upgrades, Upgrade{
			ID:          u.ID,
			From:        u.From,
			To:          u.To,
			Price:       price,
			Description: u.Description,
			Features:    u.Features,
		})
	}
	return ranks, upgrades, nil
}
