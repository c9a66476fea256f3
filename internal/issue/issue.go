// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"github.com/charmbracelet/glamour"
	"golang.org/x/exp/slices"
)

type Id int

const (
	RootManifestNotFoundId Id = iota + 1
	RootManifestInvalidId
	ConfigLoadFailedId
	ModuleNotFoundId
	DependencyCycleId
	InitActionFailedId
	RefreshActionFailedId
	CloneFailedId
)

type MarkdownMsg string

type HttpLink string

type Issue struct {
	id       Id          // ID used to lookup the issue
	mdMsg    MarkdownMsg // Markdown text that will be rendered
	docLinks []HttpLink
}

func (i *Issue) Id() Id {
	return i.id
}

func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

func (i *Issue) DocLinks() []HttpLink {
	return slices.Clone(i.docLinks)
}

func (i *Issue) Render(stylePath string) (string, error) {
	extraMd := ""
	if len(i.docLinks) > 0 {
		extraMd += "\n\n## See also\n"
		for _, link := range i.docLinks {
			extraMd += "- <" + string(link) + ">\n"
		}
	}
	return render(string(i.mdMsg)+extraMd, stylePath)
}

var (
	render = glamour.Render

	rootManifestNotFoundIssue = &Issue{
		id: RootManifestNotFoundId,
		mdMsg: `
# No root manifest found!

The project root must contain a manifest listing the modules to install.

## Things you can try:
- Create ` + "`init.yaml`" + ` in the project root:
~~~yaml
modules:
  - https://github.com/your-org/logger_manager
~~~

- Or point at another manifest:
~~~
$ adhd init --manifest path/to/init.yaml
~~~`,
	}

	rootManifestInvalidIssue = &Issue{
		id: RootManifestInvalidId,
		mdMsg: `
# The root manifest could not be read!

The manifest exists but is not a valid YAML mapping.

## Things you can try:
- Check the YAML syntax (indentation, colons, list dashes)
- Make sure the top level is a mapping with a ` + "`modules`" + ` list`,
	}

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# Failed to load configuration!

The tool configuration file exists but could not be loaded.

## Things you can try:
- Show the resolved configuration path:
~~~
$ adhd config path
~~~

- Regenerate a default configuration:
~~~
$ adhd config init
~~~`,
	}

	moduleNotFoundIssue = &Issue{
		id: ModuleNotFoundId,
		mdMsg: `
# Module not found!

No module with that name exists in the managers, utils or plugins directories.

## Things you can try:
- List the installed modules:
~~~
$ adhd list
~~~

- Run ` + "`adhd init`" + ` to install the modules from the root manifest`,
	}

	dependencyCycleIssue = &Issue{
		id: DependencyCycleId,
		mdMsg: `
# Circular dependency detected!

Some modules require each other, directly or through other modules, so none
of them can be initialized first.

## Things you can try:
- Inspect the dependency order:
~~~
$ adhd graph
~~~

- Remove one of the requirements forming the cycle from its ` + "`init.yaml`",
	}

	initActionFailedIssue = &Issue{
		id: InitActionFailedId,
		mdMsg: `
# Module initialization failed!

One or more modules returned a non-zero exit status from their init script.
Modules depending on them were not initialized.

## Things you can try:
- Re-run with ` + "`--verbose`" + ` to see the captured output
- Run the failing module's init script by hand from the project root`,
	}

	refreshActionFailedIssue = &Issue{
		id: RefreshActionFailedId,
		mdMsg: `
# Module refresh failed!

A refresh script returned a non-zero exit status.

## Things you can try:
- Refresh a single module to isolate the problem:
~~~
$ adhd refresh --module <name>
~~~`,
	}

	cloneFailedIssue = &Issue{
		id: CloneFailedId,
		mdMsg: `
# Some modules could not be downloaded!

## Things you can try:
- Check your network connection and the repository URLs
- For private repositories, set ` + "`GITHUB_TOKEN`" + ` or configure an SSH key
- Increase ` + "`materialize.clone_timeout`" + ` in the configuration`,
	}

	catalog = []*Issue{
		rootManifestNotFoundIssue,
		rootManifestInvalidIssue,
		configLoadFailedIssue,
		moduleNotFoundIssue,
		dependencyCycleIssue,
		initActionFailedIssue,
		refreshActionFailedIssue,
		cloneFailedIssue,
	}

	issues = func() map[Id]*Issue {
		m := make(map[Id]*Issue, len(catalog))
		for _, i := range catalog {
			m[i.Id()] = i
		}
		return m
	}()
)

// Values returns every catalog entry in Id order.
func Values() []*Issue {
	return slices.Clone(catalog)
}

func Get(id Id) *Issue {
	return issues[id]
}
