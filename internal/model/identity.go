// Package model はドメインモデルを定義する。
package model

import "strings"

// AnonymousIDPrefix は匿名IDの接頭辞。
const AnonymousIDPrefix = "anon_"

// Identity はリクエストを発行する主体を表す。
// 認証済みユーザーか匿名ユーザーのどちらか一方であり、
// 1リクエストにつき必ず1つのIdentityが有効になる。
type Identity struct {
	ID            string
	Name          string
	Email         string
	Picture       string
	Authenticated bool
}

// IsAnonymous は匿名Identityかどうかを返す。
func (i Identity) IsAnonymous() bool {
	return !i.Authenticated
}

// NewAnonymousIdentity は指定IDの匿名Identityを生成する。
func NewAnonymousIdentity(id string) Identity {
	return Identity{ID: id, Authenticated: false}
}

// IsAnonymousID は文字列が匿名ID形式かどうかを判定する。
func IsAnonymousID(id string) bool {
	return strings.HasPrefix(id, AnonymousIDPrefix)
}
