// Copyright 2014-2016 Fraunhofer Institute for Applied Information Technology FIT

package catalog

import (
	"errors"
	"fmt"

	"github.com/linksmart/wot-servient/wot"
)

// LocalAdvertiser registers the TDs of exposed Things in the directory of the same process
type LocalAdvertiser struct {
	controller CatalogController
}

func NewLocalAdvertiser(controller CatalogController) *LocalAdvertiser {
	return &LocalAdvertiser{controller: controller}
}

// Advertise creates or replaces the registration of the TD
func (a *LocalAdvertiser) Advertise(td wot.ThingDescription) error {
	if td.ID == "" {
		return fmt.Errorf("TD of %s has no id", td.Title)
	}
	m, err := td.ToMap()
	if err != nil {
		return fmt.Errorf("error serializing TD: %s", err)
	}

	err = a.controller.update(td.ID, m)
	var notFound *NotFoundError
	if errors.As(err, &notFound) {
		_, err = a.controller.add(m)
	}
	return err
}

// Withdraw removes the registration; a missing one is not an error
func (a *LocalAdvertiser) Withdraw(id string) error {
	err := a.controller.delete(id)
	var notFound *NotFoundError
	if errors.As(err, &notFound) {
		return nil
	}
	return err
}
