// Copyright 2014-2016 Fraunhofer Institute for Applied Information Technology FIT

package catalog

import (
	"fmt"
	"strconv"
)

// ParsePagingParams parses the paging query parameters, defaulting to the first page of maxPerPage items
func ParsePagingParams(page, perPage string, maxPerPage int) (int, int, error) {
	var parsedPage, parsedPerPage int
	var err error

	if page == "" {
		parsedPage = 1
	} else {
		parsedPage, err = strconv.Atoi(page)
		if err != nil {
			return 0, 0, fmt.Errorf("invalid value for parameter %s: %s", GetParamPage, page)
		}
	}

	if perPage == "" {
		parsedPerPage = maxPerPage
	} else {
		parsedPerPage, err = strconv.Atoi(perPage)
		if err != nil {
			return 0, 0, fmt.Errorf("invalid value for parameter %s: %s", GetParamPerPage, perPage)
		}
	}

	return parsedPage, parsedPerPage, validatePagingParams(parsedPage, parsedPerPage, maxPerPage)
}

func validatePagingParams(page, perPage, maxPerPage int) error {
	if page < 1 {
		return fmt.Errorf("%s number must be positive", GetParamPage)
	}
	if perPage < 1 || perPage > maxPerPage {
		return fmt.Errorf("%s must be between 1 and %d", GetParamPerPage, maxPerPage)
	}
	return nil
}

// GetPagingAttr returns the offset and limit of the requested page in a collection of the given size
func GetPagingAttr(total, page, perPage, maxPerPage int) (int, int, error) {
	if err := validatePagingParams(page, perPage, maxPerPage); err != nil {
		return 0, 0, err
	}

	offset := (page - 1) * perPage
	if offset >= total {
		// empty page
		return total, 0, nil
	}
	limit := perPage
	if offset+limit > total {
		limit = total - offset
	}
	return offset, limit, nil
}
