// Copyright 2020-2024 Buf Technologies, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package rangeyaml

import (
	"context"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ytoolshed/crange/private/rangepkg/rangeeval"
	"github.com/ytoolshed/crange/private/rangepkg/rangeset"
)

// functionCluster expands cluster:SECTION, or the CLUSTER section of a bare cluster name.
func (s *Store) functionCluster(ctx context.Context, request *rangeeval.Request, args []*rangeset.Set) (*rangeset.Set, error) {
	if err := rangeeval.ValidateArgs(args, 1); err != nil {
		return nil, err
	}
	result := rangeset.New()
	for _, name := range args[0].Names() {
		cluster, section, ok := strings.Cut(name, ":")
		if !ok {
			section = SectionCluster
		}
		nodes, err := s.Section(ctx, request, cluster, section)
		if err != nil {
			return nil, err
		}
		result.AddAll(nodes)
	}
	return result, nil
}

// functionClusters returns every cluster whose CLUSTER section contains each node.
func (s *Store) functionClusters(ctx context.Context, request *rangeeval.Request, args []*rangeset.Set) (*rangeset.Set, error) {
	return s.clustersForNodes(ctx, request, args, false)
}

// functionGetCluster returns the first cluster whose CLUSTER section contains each node.
func (s *Store) functionGetCluster(ctx context.Context, request *rangeeval.Request, args []*rangeset.Set) (*rangeset.Set, error) {
	return s.clustersForNodes(ctx, request, args, true)
}

func (s *Store) clustersForNodes(ctx context.Context, request *rangeeval.Request, args []*rangeset.Set, firstOnly bool) (*rangeset.Set, error) {
	if err := rangeeval.ValidateArgs(args, 1); err != nil {
		return nil, err
	}
	index, err := s.buildClusterIndex(ctx, request)
	if err != nil {
		return nil, err
	}
	result := rangeset.New()
	for _, node := range args[0].Names() {
		clusters, ok := index[node]
		if !ok {
			request.WarnType(ctx, rangeeval.WarningNoClusterForNode, node)
			continue
		}
		if firstOnly {
			clusters = clusters[:1]
		}
		for _, cluster := range clusters {
			result.Add(cluster)
		}
	}
	return result, nil
}

// functionHas returns the clusters whose KEY section contains the value.
func (s *Store) functionHas(ctx context.Context, request *rangeeval.Request, args []*rangeset.Set) (*rangeset.Set, error) {
	if err := rangeeval.ValidateArgs(args, 2); err != nil {
		return nil, err
	}
	result := rangeset.New()
	key, ok1 := first(args[0])
	value, ok2 := first(args[1])
	if !ok1 || !ok2 {
		return result, nil
	}
	clusterNames, err := s.allClusters(ctx, request)
	if err != nil {
		return nil, err
	}
	quietCtx := rangeeval.WithoutWarnings(ctx)
	for _, cluster := range clusterNames {
		values, err := s.Section(quietCtx, request, cluster, key)
		if err != nil {
			return nil, err
		}
		if values.Contains(value) {
			result.Add(cluster)
		}
	}
	return result, nil
}

// functionMem returns the sections of the cluster that contain any of the names.
func (s *Store) functionMem(ctx context.Context, request *rangeeval.Request, args []*rangeset.Set) (*rangeset.Set, error) {
	if err := rangeeval.ValidateArgs(args, 2); err != nil {
		return nil, err
	}
	result := rangeset.New()
	cluster, ok := first(args[0])
	if !ok {
		return result, nil
	}
	wanted := args[1].Names()
	sections, err := s.Section(ctx, request, cluster, SectionKeys)
	if err != nil {
		return nil, err
	}
	for _, section := range sections.Names() {
		nodes, err := s.Section(ctx, request, cluster, section)
		if err != nil {
			return nil, err
		}
		for _, name := range wanted {
			if nodes.Contains(name) {
				result.Add(section)
				break
			}
		}
	}
	return result, nil
}

// functionAllClusters returns the names of all clusters.
func (s *Store) functionAllClusters(ctx context.Context, request *rangeeval.Request, args []*rangeset.Set) (*rangeset.Set, error) {
	if err := rangeeval.ValidateArgs(args, 0); err != nil {
		return nil, err
	}
	clusterNames, err := s.allClusters(ctx, request)
	if err != nil {
		return nil, err
	}
	return rangeset.New(clusterNames...), nil
}

// functionGroup expands groups. Lowercase groups are sections of HOSTS, all
// others are sections of GROUPS.
func (s *Store) functionGroup(ctx context.Context, request *rangeeval.Request, args []*rangeset.Set) (*rangeset.Set, error) {
	if err := rangeeval.ValidateArgs(args, 1); err != nil {
		return nil, err
	}
	result := rangeset.New()
	for _, group := range args[0].Names() {
		cluster := ClusterGroups
		if r, _ := utf8.DecodeRuneInString(group); unicode.IsLower(r) {
			cluster = ClusterHosts
		}
		nodes, err := s.Section(ctx, request, cluster, group)
		if err != nil {
			return nil, err
		}
		result.AddAll(nodes)
	}
	return result, nil
}

// functionGetAdmin returns the HOSTS section that contains each node.
func (s *Store) functionGetAdmin(ctx context.Context, request *rangeeval.Request, args []*rangeset.Set) (*rangeset.Set, error) {
	if err := rangeeval.ValidateArgs(args, 1); err != nil {
		return nil, err
	}
	admins, err := s.Section(ctx, request, ClusterHosts, SectionKeys)
	if err != nil {
		return nil, err
	}
	nodeToAdmin := make(map[string]string)
	for _, admin := range admins.Names() {
		nodes, err := s.Section(ctx, request, ClusterHosts, admin)
		if err != nil {
			return nil, err
		}
		for _, node := range nodes.Names() {
			if _, ok := nodeToAdmin[node]; !ok {
				nodeToAdmin[node] = admin
			}
		}
	}
	result := rangeset.New()
	for _, node := range args[0].Names() {
		admin, ok := nodeToAdmin[node]
		if !ok {
			request.WarnType(ctx, rangeeval.WarningNoAdmin, node)
			continue
		}
		result.Add(admin)
	}
	return result, nil
}

func first(set *rangeset.Set) (string, bool) {
	names := set.Names()
	if len(names) == 0 {
		return "", false
	}
	return names[0], true
}
