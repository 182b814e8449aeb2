package views

import (
	"context"
	"io"
	"time"

	"github.com/a-h/templ"
	"github.com/gin728/ginblog/internal/blog"
	users "github.com/gin728/ginblog/internal/user"
)

// The real site UI lives outside this repo; the components here are the few
// pages the server renders itself, written against the templ runtime
// directly since there is no codegen step.

// RedirectPage is the post-login interstitial that client-redirects to the
// stored target.
func RedirectPage(target string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		safe := templ.EscapeString(target)
		_, err := io.WriteString(w,
			`<!DOCTYPE html><html><head><meta charset="utf-8">`+
				`<meta http-equiv="refresh" content="0;url=`+safe+`">`+
				`</head><body><p>Signed in. <a href="`+safe+`">Continue</a></p></body></html>`)
		return err
	})
}

// ProfilePage shows the signed-in user's display identity and which
// providers are linked.
func ProfilePage(user *users.User) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b []byte
		b = append(b, `<!DOCTYPE html><html><head><meta charset="utf-8"><title>Profile</title></head><body>`...)
		b = append(b, `<h1>`+templ.EscapeString(user.Username)+`</h1>`...)
		if user.Avatar != nil {
			b = append(b, `<img src="`+templ.EscapeString(*user.Avatar)+`" alt="avatar" width="64">`...)
		}
		if user.Bio != nil {
			b = append(b, `<p>`+templ.EscapeString(*user.Bio)+`</p>`...)
		}
		b = append(b, `<ul>`...)
		for _, provider := range []string{users.ProviderGithub, users.ProviderGoogle, users.ProviderDiscord} {
			if username, _, ok := user.ProviderIdentity(provider); ok {
				b = append(b, `<li>`+provider+`: `+templ.EscapeString(username)+`</li>`...)
			} else {
				b = append(b, `<li><a href="/login/`+provider+`?redirect_to=/profile">Link `+provider+`</a></li>`...)
			}
		}
		b = append(b, `</ul></body></html>`...)
		_, err := w.Write(b)
		return err
	})
}

// HomePage lists the latest published posts.
func HomePage(user *users.User, posts []*blog.Post) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b []byte
		b = append(b, `<!DOCTYPE html><html><head><meta charset="utf-8"><title>gin&apos;s blog</title></head><body>`...)
		if user != nil {
			b = append(b, `<p>Signed in as `+templ.EscapeString(user.Username)+`</p>`...)
		} else {
			b = append(b, `<p><a href="/login/github">Sign in</a></p>`...)
		}
		b = append(b, `<ul>`...)
		for _, post := range posts {
			date := ""
			if post.PublishedAt != nil {
				date = time.UnixMilli(*post.PublishedAt).Format("2006-01-02")
			}
			b = append(b, `<li><a href="/api/posts/`+templ.EscapeString(post.Slug)+`">`+
				templ.EscapeString(post.Title)+`</a> <small>`+date+`</small></li>`...)
		}
		b = append(b, `</ul></body></html>`...)
		_, err := w.Write(b)
		return err
	})
}
