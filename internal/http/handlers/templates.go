package handlers

import (
	"html/template"
	"sync"
)

// Page templates are kept in code so the binary is self-contained. The
// names double as the gin HTML template names.
const pageTemplates = `
{{define "head"}}<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8" />
    <meta name="viewport" content="width=device-width,initial-scale=1" />
    {{if .Refresh}}<meta http-equiv="refresh" content="{{.Refresh}}" />{{end}}
    <title>{{if .Title}}{{.Title}} · {{end}}ProjectHub</title>
    <style>
      body { font-family: system-ui, sans-serif; margin: 0; background: #f8fafc; color: #0f172a; }
      main { max-width: 720px; margin: 4rem auto; padding: 0 1rem; }
      .error { color: #b91c1c; }
      form { display: grid; gap: .75rem; max-width: 320px; }
      nav { display: flex; gap: 1rem; padding: 1rem; background: #fff; border-bottom: 1px solid #e2e8f0; }
    </style>
  </head>
  <body>
    <nav>
      <a href="/">ProjectHub</a>
      {{if .User}}<a href="/dashboard">Dashboard</a>{{if eq .User.Role "admin"}}<a href="/admin">Admin</a>{{end}}
      <form method="post" action="/logout"><button type="submit">Log out</button></form>
      {{else}}<a href="/login">Log in</a><a href="/register">Register</a>{{end}}
    </nav>
    <main>
{{end}}

{{define "foot"}}
    </main>
  </body>
</html>{{end}}

{{define "home.html"}}{{template "head" .}}
      <h1>ProjectHub</h1>
      <p>Projects, tasks and teams in one place.</p>
{{template "foot" .}}{{end}}

{{define "login.html"}}{{template "head" .}}
      <h1>Log in</h1>
      {{if .Notice}}<p>{{.Notice}}</p>{{end}}
      {{if .Error}}<p class="error">{{.Error}}</p>{{end}}
      <form method="post" action="/login">
        <label>Email <input type="email" name="email" value="{{.Email}}" required /></label>
        <label>Password <input type="password" name="password" required /></label>
        <button type="submit">Log in</button>
      </form>
      <p>No account? <a href="/register">Register</a></p>
{{template "foot" .}}{{end}}

{{define "register.html"}}{{template "head" .}}
      <h1>Create an account</h1>
      {{if .Error}}<p class="error">{{.Error}}</p>{{end}}
      <form method="post" action="/register">
        <label>Name <input name="name" value="{{.Name}}" required /></label>
        <label>Last name <input name="lastName" value="{{.LastName}}" required /></label>
        <label>Email <input type="email" name="email" value="{{.Email}}" required /></label>
        <label>Password <input type="password" name="password" minlength="6" required /></label>
        <button type="submit">Register</button>
      </form>
{{template "foot" .}}{{end}}

{{define "dashboard.html"}}{{template "head" .}}
      <h1>Dashboard</h1>
      <p>Welcome, {{if .User.FullName}}{{.User.FullName}}{{else}}{{.User.Email}}{{end}}.</p>
      <p>Signed in as <strong>{{.User.Role}}</strong>.</p>
{{template "foot" .}}{{end}}

{{define "admin.html"}}{{template "head" .}}
      <h1>Panel de Administración</h1>
      <table>
        <thead><tr><th>Path</th><th>Roles</th><th>Title</th></tr></thead>
        <tbody>
        {{range .Routes}}<tr><td>{{.Path}}</td><td>{{range $i, $r := .RequiredRoles}}{{if $i}}, {{end}}{{$r}}{{end}}</td><td>{{.Title}}</td></tr>
        {{end}}
        </tbody>
      </table>
{{template "foot" .}}{{end}}

{{define "loading.html"}}{{template "head" .}}
      <h3>Loading...</h3>
      <p>One moment please.</p>
{{template "foot" .}}{{end}}

{{define "fallback.html"}}{{template "head" .}}
      <h3>Access denied</h3>
      <p>You must log in to access this page.</p>
      <p><a href="/login">Log in</a></p>
{{template "foot" .}}{{end}}

{{define "unauthorized.html"}}{{template "head" .}}
      <h1>Unauthorized</h1>
      <p>You do not have permission to view this page.</p>
      <p><a href="/">Back home</a></p>
{{template "foot" .}}{{end}}
`

var (
	templatesOnce sync.Once
	templates     *template.Template
)

// Templates returns the parsed page set.
func Templates() *template.Template {
	templatesOnce.Do(func() {
		templates = template.Must(template.New("pages").Parse(pageTemplates))
	})
	return templates
}
