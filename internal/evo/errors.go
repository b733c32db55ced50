package evo

import "errors"

var (
	ErrInvalidState       = errors.New("invalid engine state")
	ErrEmptyGeneratingSet = errors.New("empty generating set")
	ErrInvalidFitness     = errors.New("invalid fitness")
	ErrInvalidAddStrategy = errors.New("invalid add-generator strategy table")
)
