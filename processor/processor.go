// Package processor provides content processors for structured field values.
package processor

import "github.com/ZaguanLabs/lazytl"

// ContentProcessor is an alias to the main package interface.
type ContentProcessor = lazytl.ContentProcessor

// TextNode is an alias to the main package type.
type TextNode = lazytl.TextNode
