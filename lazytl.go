// Package lazytl provides a lazy translation cache for database-authored
// content.
//
// Records such as news items, events and documents are written in one
// source locale. Lazytl translates their free-text fields into other locales
// on demand, caching every (content hash, target locale) pair in a shared
// store so each distinct text is sent to the translation provider once.
//
// Basic usage:
//
//	import (
//	    "context"
//	    "github.com/ZaguanLabs/lazytl"
//	    "github.com/ZaguanLabs/lazytl/cache"
//	    "github.com/ZaguanLabs/lazytl/provider"
//	)
//
//	func main() {
//	    p, err := provider.New(provider.Config{
//	        Kind:   provider.KindDeepL,
//	        APIKey: os.Getenv("LAZYTL_API_KEY"),
//	    })
//	    if err != nil {
//	        log.Printf("translation disabled: %v", err)
//	    }
//
//	    t := lazytl.NewTranslator("sv", p,
//	        lazytl.WithStore(cache.NewInMemoryStore(0)),
//	    )
//	    defer t.Close(context.Background())
//
//	    m := lazytl.NewFieldMapper(t)
//	    news := []lazytl.Record{{"title": "Vägarbete på Storgatan", "body": "..."}}
//	    out := m.TranslateArray(context.Background(), news, []string{"title", "body"}, "en")
//	    fmt.Println(out[0]["title"])
//	}
//
// Translation never fails from the caller's point of view: provider or store
// outages degrade to returning the source text unchanged.
package lazytl
