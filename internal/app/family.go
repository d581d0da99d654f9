package app

import (
	"context"
	"strings"

	"shared-basket/internal/apperr"
	"shared-basket/internal/basket"
	"shared-basket/internal/catalog"
)

// SetFamilyID starts sharing the list under familyID and adopts the family
// document if one exists. An empty id stops sharing.
func (a *App) SetFamilyID(ctx context.Context, familyID string) (bool, error) {
	familyID = strings.TrimSpace(familyID)

	a.mu.Lock()
	a.state.FamilyID = familyID
	a.persistLocked(ctx)
	a.mu.Unlock()

	if familyID == "" {
		return false, nil
	}
	return a.Pull(a.log.WithFamilyID(ctx, familyID))
}

// JoinFamily is SetFamilyID for a shared link: when links are signed the
// invite token must be valid for familyID.
func (a *App) JoinFamily(ctx context.Context, familyID, invite string) (bool, error) {
	familyID = strings.TrimSpace(familyID)
	if familyID == "" {
		return false, ErrNoFamily
	}
	if a.links != nil {
		if err := a.links.VerifyInvite(familyID, invite); err != nil {
			return false, apperr.Wrap(apperr.CodeValidation, err, "invalid invite")
		}
	}
	return a.SetFamilyID(ctx, familyID)
}

// ShareLink returns the link other devices open to join the family.
func (a *App) ShareLink() (string, error) {
	if a.links == nil {
		return "", ErrSharingDisabled
	}

	a.mu.Lock()
	familyID := a.state.FamilyID
	a.mu.Unlock()

	if familyID == "" {
		return "", ErrNoFamily
	}
	return a.links.Link(familyID)
}

// Pull replaces the local items, location and GPS flag with the family
// document. It reports false when there was nothing to adopt. The pull is
// not an undo step and is not pushed back.
func (a *App) Pull(ctx context.Context) (bool, error) {
	a.mu.Lock()
	familyID := a.state.FamilyID
	a.mu.Unlock()

	if familyID == "" {
		return false, ErrNoFamily
	}

	doc, ok := a.sync.Pull(ctx, familyID)
	if !ok {
		return false, nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state.FamilyID != familyID {
		a.log.Info(ctx, "app.pull_discarded")
		return false, nil
	}

	a.state.Items = basket.CloneItems(doc.Items)
	if a.state.Items == nil {
		a.state.Items = []basket.Item{}
	}
	a.state.Location = doc.Location
	if a.state.Location == "" {
		a.state.Location = catalog.DefaultLocation
	}
	a.state.IsGps = doc.IsGps

	a.cancelOrphanedFetchesLocked()
	a.refreshPricesLocked()
	a.persistLocked(ctx)

	a.log.Info(a.log.WithField(ctx, "items", len(a.state.Items)), "app.pulled")
	return true, nil
}
