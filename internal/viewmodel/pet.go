package viewmodel

import (
	"context"
	"sort"
	"strings"
	"time"

	"petcare/internal/model"
	"petcare/internal/repository"
)

// PetViewModel publishes the pet list ordered by name.
type PetViewModel struct {
	*collection[model.Pet, *model.Pet, []model.Pet]
}

func NewPetViewModel(ctx context.Context, store repository.Store[model.Pet], opts ...Option) *PetViewModel {
	vm := &PetViewModel{
		collection: newCollection[model.Pet, *model.Pet]("pets", store, sortPets, opts),
	}
	vm.start(ctx)
	return vm
}

func (vm *PetViewModel) Pets() []model.Pet {
	return vm.Snapshot()
}

func (vm *PetViewModel) Add(ctx context.Context, p *model.Pet) error {
	return vm.insert(ctx, p)
}

func (vm *PetViewModel) Update(ctx context.Context, p *model.Pet) error {
	return vm.update(ctx, p)
}

func (vm *PetViewModel) Delete(ctx context.Context, p model.Pet) error {
	return vm.remove(ctx, &p)
}

func (vm *PetViewModel) Find(id uint) (model.Pet, bool) {
	for _, p := range vm.Snapshot() {
		if p.ID == id {
			return p, true
		}
	}
	return model.Pet{}, false
}

func sortPets(pets []model.Pet, _ time.Time) []model.Pet {
	out := append([]model.Pet{}, pets...)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := strings.ToLower(out[i].Name), strings.ToLower(out[j].Name)
		if a != b {
			return a < b
		}
		return out[i].ID < out[j].ID
	})
	return out
}
