/*
Copyright 2021 Gravitational, Inc.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package session

import (
	"regexp"
	"unicode/utf8"

	"github.com/gravitational/trace"
)

const (
	minPasswordLength = 6
	minNameLength     = 2
)

var (
	emailRegexp          = regexp.MustCompile(`\S+@\S+\.\S+`)
	passwordDigitRegexp  = regexp.MustCompile(`[0-9]`)
	passwordLetterRegexp = regexp.MustCompile(`[a-zA-Z]`)
	// Latin and Cyrillic letters and whitespace only.
	nameRegexp = regexp.MustCompile(`^[a-zA-Zа-яА-ЯёЁ\s]+$`)
)

// ValidateEmail checks that the address looks like user@host.tld.
func ValidateEmail(email string) error {
	if !emailRegexp.MatchString(email) {
		return trace.BadParameter("email %q is not valid", email)
	}
	return nil
}

// ValidatePassword requires at least six characters with an ASCII digit
// and an ASCII letter.
func ValidatePassword(password string) error {
	if utf8.RuneCountInString(password) < minPasswordLength {
		return trace.BadParameter("password must be at least %d characters long", minPasswordLength)
	}
	if !passwordDigitRegexp.MatchString(password) || !passwordLetterRegexp.MatchString(password) {
		return trace.BadParameter("password must contain at least one number and one letter")
	}
	return nil
}

// ValidateName requires at least two Latin or Cyrillic letters or spaces.
func ValidateName(name string) error {
	if utf8.RuneCountInString(name) < minNameLength || !nameRegexp.MatchString(name) {
		return trace.BadParameter("name should be at least %d characters long and contain only letters", minNameLength)
	}
	return nil
}

// ValidateLogin checks the credentials before they are sent anywhere.
func ValidateLogin(email, password string) error {
	if err := ValidateEmail(email); err != nil {
		return trace.Wrap(err)
	}
	return trace.Wrap(ValidatePassword(password))
}

// ValidateRegistration checks a new account before it is sent anywhere.
func ValidateRegistration(name, email, password string) error {
	if err := ValidateName(name); err != nil {
		return trace.Wrap(err)
	}
	return trace.Wrap(ValidateLogin(email, password))
}
