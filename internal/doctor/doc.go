// Package doctor runs diagnostic checks against a strata setup: the config
// file, every declared store and the permissions of the files behind file
// stores.
//
// A Runner executes checks in registration order and collects a
// DoctorReport. Checks that can repair what they find also implement Fixer.
package doctor
