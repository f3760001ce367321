package catalog

import (
	"fmt"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

var platforms = []string{"Windows", "Macos", "Linux"}

func parse(data []byte, path string) (*Catalog, ValidationResult) {
	result := ValidationResult{Path: path}
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		result.add(docRef(path), fmt.Sprintf("invalid document (%s)", strings.TrimSpace(err.Error())))
		return nil, result
	}
	root := unwrapDocument(&doc)
	if root == nil || root.Kind != yaml.MappingNode {
		result.add(docRef(path), "invalid document (must be a mapping)")
		return nil, result
	}

	dir := "."
	if strings.TrimSpace(path) != "" {
		if abs, err := filepath.Abs(path); err == nil {
			dir = filepath.Dir(abs)
		} else {
			dir = filepath.Dir(path)
		}
	}
	cat := &Catalog{
		path:        path,
		dir:         dir,
		bundleIndex: map[string]int{},
		repoIndex:   map[string]int{},
		binaryIndex: map[string]int{},
		owners:      map[string]string{},
	}

	cat.repos = parseRepos(root, &result)
	cat.binaries = parseBinaries(root, &result)
	bundles, entryRefs := parseBundles(root, &result)
	cat.bundles = bundles
	for i, r := range cat.repos {
		cat.repoIndex[r.Name] = i
	}
	for i, b := range cat.binaries {
		cat.binaryIndex[b.Name] = i
	}
	for i, b := range cat.bundles {
		cat.bundleIndex[b.Name] = i
	}

	checkSubprojects(cat, &result)
	checkBundleRefs(cat, entryRefs, &result)
	checkBinaryRefs(cat, &result)
	return cat, result
}

func requiredSection(root *yaml.Node, section string, result *ValidationResult) *yaml.Node {
	node := mappingValue(root, section)
	if node == nil {
		result.add(section, "missing required section")
		return nil
	}
	if isNull(node) {
		return nil
	}
	return node
}

func parseRepos(root *yaml.Node, result *ValidationResult) []RepoInfo {
	section := requiredSection(root, SectionRepos, result)
	if section == nil {
		return nil
	}
	var repos []RepoInfo
	for _, entry := range namedEntries(section, SectionRepos, result) {
		if entry.node == nil || entry.node.Kind != yaml.MappingNode {
			if isNull(entry.node) {
				repos = append(repos, RepoInfo{Name: entry.name, Subprojects: []Subproject{{Name: entry.name}}})
				continue
			}
			result.add(entry.ref, "invalid value (repo entry must be a mapping)")
			continue
		}
		info := RepoInfo{
			Name: entry.name,
			URL:  strings.TrimSpace(scalarValue(mappingValue(entry.node, "url"))),
		}

		// A repo is either one project with dependencies, a set of named
		// sub-projects, or both.
		depsNode := mappingValue(entry.node, "dependencies")
		if depsNode != nil {
			info.Subprojects = append(info.Subprojects, Subproject{
				Name:         entry.name,
				Dependencies: stringList(depsNode, entry.ref+".dependencies", result),
			})
		}
		subRef := entry.ref + ".sub_project_dependencies"
		if subNode := mappingValue(entry.node, "sub_project_dependencies"); !isNull(subNode) {
			if subNode.Kind != yaml.MappingNode {
				result.add(subRef, "invalid value (must be a mapping)")
			} else {
				for i := 0; i+1 < len(subNode.Content); i += 2 {
					name := strings.TrimSpace(subNode.Content[i].Value)
					ref := fmt.Sprintf("%s.%s", subRef, name)
					if name == "" {
						result.add(subRef, "sub-project name is empty")
						continue
					}
					if hasSubproject(info.Subprojects, name) {
						result.add(ref, fmt.Sprintf("duplicate sub-project %q", name))
						continue
					}
					info.Subprojects = append(info.Subprojects, Subproject{
						Name:         name,
						Dependencies: stringList(subNode.Content[i+1], ref, result),
					})
				}
			}
		}
		if depsNode == nil && len(info.Subprojects) == 0 {
			info.Subprojects = []Subproject{{Name: entry.name}}
		}
		info.Binaries = stringList(mappingValue(entry.node, "binaries"), entry.ref+".binaries", result)
		repos = append(repos, info)
	}
	return repos
}

func hasSubproject(subprojects []Subproject, name string) bool {
	for _, sp := range subprojects {
		if sp.Name == name {
			return true
		}
	}
	return false
}

func parseBinaries(root *yaml.Node, result *ValidationResult) []Binary {
	node := mappingValue(root, SectionBinaries)
	if isNull(node) {
		return nil
	}
	var binaries []Binary
	for _, entry := range namedEntries(node, SectionBinaries, result) {
		if entry.node == nil || entry.node.Kind != yaml.MappingNode {
			result.add(entry.ref, "invalid value (binary entry must be a mapping)")
			continue
		}
		bin := Binary{
			Name:     entry.name,
			Locator:  strings.TrimSpace(scalarValue(mappingValue(entry.node, "url"))),
			Locators: map[string]string{},
			BinPath:  strings.TrimSpace(scalarValue(mappingValue(entry.node, "bin_path"))),
		}
		for _, pair := range orderedPairs(mappingValue(entry.node, "binaries"), entry.ref+".binaries", result) {
			if !knownPlatform(pair[0]) {
				result.add(fmt.Sprintf("%s.binaries.%s", entry.ref, pair[0]), fmt.Sprintf("unknown platform (supported: %s)", strings.Join(platforms, ", ")))
				continue
			}
			bin.Locators[pair[0]] = pair[1]
		}
		if bin.Locator == "" && len(bin.Locators) == 0 {
			result.add(entry.ref+".binaries", "missing download location")
		}
		seen := map[string]struct{}{}
		for _, pair := range orderedPairs(mappingValue(entry.node, "cmake_variables"), entry.ref+".cmake_variables", result) {
			ref := fmt.Sprintf("%s.cmake_variables.%s", entry.ref, pair[0])
			rule := ParseVariableName(pair[0])
			if rule.Name == "" {
				result.add(ref, "variable name is empty")
				continue
			}
			if _, ok := seen[rule.Name]; ok && !rule.Append {
				result.add(ref, fmt.Sprintf("duplicate variable %q", rule.Name))
				continue
			}
			seen[rule.Name] = struct{}{}
			rule.Value = pair[1]
			bin.Variables = append(bin.Variables, rule)
		}
		binaries = append(binaries, bin)
	}
	return binaries
}

func knownPlatform(name string) bool {
	for _, p := range platforms {
		if p == name {
			return true
		}
	}
	return false
}

// parseBundles also returns, per kept bundle, the document ref of each kept
// repo entry.
func parseBundles(root *yaml.Node, result *ValidationResult) ([]Bundle, [][]string) {
	section := requiredSection(root, SectionBundles, result)
	if section == nil {
		return nil, nil
	}
	if section.Kind != yaml.SequenceNode {
		result.add(SectionBundles, "invalid value (must be a list)")
		return nil, nil
	}
	var bundles []Bundle
	var entryRefs [][]string
	seen := map[string]struct{}{}
	for i, node := range section.Content {
		ref := fmt.Sprintf("%s[%d]", SectionBundles, i)
		if node == nil || node.Kind != yaml.MappingNode {
			result.add(ref, "invalid value (bundle entry must be a mapping)")
			continue
		}
		bundle := Bundle{
			Name:     strings.TrimSpace(scalarValue(mappingValue(node, "name"))),
			BuildDir: strings.TrimSpace(scalarValue(mappingValue(node, "build_dir"))),
			Branch:   strings.TrimSpace(scalarValue(mappingValue(node, "branch"))),
		}
		if bundle.Name == "" {
			result.add(ref+".name", "missing required field")
			continue
		}
		if _, ok := seen[bundle.Name]; ok {
			result.add(ref+".name", fmt.Sprintf("duplicate bundle name %q", bundle.Name))
			continue
		}
		seen[bundle.Name] = struct{}{}
		if bundle.BuildDir == "" {
			result.add(ref+".build_dir", "missing required field")
		}

		reposKey := "repos"
		reposNode := mappingValue(node, reposKey)
		if reposNode == nil {
			reposKey = "hdps_repos"
			reposNode = mappingValue(node, reposKey)
		}
		reposRef := ref + "." + reposKey
		var refs []string
		switch {
		case reposNode == nil:
			result.add(ref+".repos", "missing required field")
		case reposNode.Kind != yaml.SequenceNode:
			result.add(reposRef, "invalid value (must be a list)")
		default:
			bundle.Repos, refs = parseRepoRefs(reposNode, reposRef, bundle.Branch, result)
		}
		bundles = append(bundles, bundle)
		entryRefs = append(entryRefs, refs)
	}
	return bundles, entryRefs
}

func parseRepoRefs(node *yaml.Node, ref, defaultBranch string, result *ValidationResult) ([]RepoRef, []string) {
	var refs []RepoRef
	var entryRefs []string
	seen := map[string]struct{}{}
	for i, entry := range node.Content {
		entryRef := fmt.Sprintf("%s[%d]", ref, i)
		var rr RepoRef
		switch {
		case entry != nil && entry.Kind == yaml.ScalarNode:
			rr.Repo = strings.TrimSpace(entry.Value)
		case entry != nil && entry.Kind == yaml.MappingNode:
			rr.Repo = strings.TrimSpace(scalarValue(mappingValue(entry, "repo")))
			rr.Branch = strings.TrimSpace(scalarValue(mappingValue(entry, "branch")))
			rr.Local = strings.TrimSpace(scalarValue(mappingValue(entry, "local")))
		default:
			result.add(entryRef, "invalid value (must be a repo name or a mapping)")
			continue
		}
		if rr.Repo == "" {
			result.add(entryRef+".repo", "missing required field")
			continue
		}
		if strings.ContainsAny(rr.Repo, `/\`) || rr.Repo == "." || rr.Repo == ".." {
			result.add(entryRef+".repo", "invalid value (must be a single path segment)")
			continue
		}
		if _, ok := seen[rr.Repo]; ok {
			result.add(entryRef+".repo", fmt.Sprintf("duplicate repo %q", rr.Repo))
			continue
		}
		seen[rr.Repo] = struct{}{}
		if rr.Branch == "" {
			rr.Branch = defaultBranch
		}
		refs = append(refs, rr)
		entryRefs = append(entryRefs, entryRef+".repo")
	}
	return refs, entryRefs
}

// checkSubprojects builds the subproject owner table and requires every
// dependency to name exactly one declared subproject.
func checkSubprojects(cat *Catalog, result *ValidationResult) {
	for _, repo := range cat.repos {
		for _, sp := range repo.Subprojects {
			if owner, ok := cat.owners[sp.Name]; ok {
				result.add(subprojectRef(repo, sp), fmt.Sprintf("sub-project %q is also declared by repo %q", sp.Name, owner))
				continue
			}
			cat.owners[sp.Name] = repo.Name
		}
	}
	for _, repo := range cat.repos {
		for _, sp := range repo.Subprojects {
			for _, dep := range sp.Dependencies {
				if _, ok := cat.owners[dep]; !ok {
					result.add(subprojectRef(repo, sp), fmt.Sprintf("unknown dependency %q", dep))
				}
			}
		}
	}
}

func subprojectRef(repo RepoInfo, sp Subproject) string {
	if sp.Name == repo.Name {
		return fmt.Sprintf("%s.%s.dependencies", SectionRepos, repo.Name)
	}
	return fmt.Sprintf("%s.%s.sub_project_dependencies.%s", SectionRepos, repo.Name, sp.Name)
}

func checkBundleRefs(cat *Catalog, entryRefs [][]string, result *ValidationResult) {
	for i, bundle := range cat.bundles {
		for j, rr := range bundle.Repos {
			if _, ok := cat.repoIndex[rr.Repo]; ok {
				continue
			}
			ref := entryRefs[i][j]
			result.addErr(ref, &UnresolvedReferenceError{Kind: RefRepo, Name: rr.Repo, Ref: ref})
		}
	}
}

func checkBinaryRefs(cat *Catalog, result *ValidationResult) {
	for _, repo := range cat.repos {
		for i, name := range repo.Binaries {
			if _, ok := cat.binaryIndex[name]; ok {
				continue
			}
			ref := fmt.Sprintf("%s.%s.binaries[%d]", SectionRepos, repo.Name, i)
			result.addErr(ref, &UnresolvedReferenceError{Kind: RefBinary, Name: name, Ref: ref})
		}
	}
}
