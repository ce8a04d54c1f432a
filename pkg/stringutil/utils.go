// Package stringutil formats mail values for display and search.
package stringutil

import (
	"net/mail"
	"strings"
)

// StringAddress converts an Address to a UTF-8 string, an empty string for nil.
func StringAddress(a *mail.Address) string {
	if a == nil {
		return ""
	}
	if a.Name == "" {
		return a.Address
	}
	return a.Name + " <" + a.Address + ">"
}

// StringAddressList converts a list of addresses to a list of strings.
func StringAddressList(addrs []*mail.Address) []string {
	s := make([]string, 0, len(addrs))
	for _, a := range addrs {
		if a != nil {
			s = append(s, StringAddress(a))
		}
	}
	return s
}

// JoinAddressList formats a list of addresses as a comma separated string.
func JoinAddressList(addrs []*mail.Address) string {
	return strings.Join(StringAddressList(addrs), ", ")
}
