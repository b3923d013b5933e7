// Package models はアプリケーションで使用するデータ構造を定義します
package models

import "time"

// User はサインイン中のユーザーの情報を表します
// セッションの間だけメモリ上に存在し、永続化はしません
type User struct {
	ID     string `json:"id"`     // IDプロバイダが発行した一意な識別子
	Name   string `json:"name"`   // 表示名
	Avatar string `json:"avatar"` // アイコン画像URL
}

// Author は質問の投稿者です（投稿時のユーザー情報をコピーして保存します）
type Author struct {
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
}

// Room はQ&Aルームを表します
type Room struct {
	ID        string     `json:"id"`                // ルームコード
	Title     string     `json:"title"`             // タイトル
	AuthorID  string     `json:"authorId"`          // 管理者（作成者）のユーザーID
	CreatedAt time.Time  `json:"createdAt"`         // 作成日時
	EndedAt   *time.Time `json:"endedAt,omitempty"` // 終了日時（nil: 開催中）
}

// IsEnded はルームが終了済みかを返します
func (r Room) IsEnded() bool {
	return r.EndedAt != nil
}

// Question はルームに投稿された質問です
type Question struct {
	ID            string    `json:"id"`
	Content       string    `json:"content"`
	Author        Author    `json:"author"`
	IsAnswered    bool      `json:"isAnswered"`
	IsHighlighted bool      `json:"isHighlighted"`
	CreatedAt     time.Time `json:"createdAt"`
}

// RoomSnapshot はストアから受け取ったルームの最新状態です
// Questions は挿入順に並びます
type RoomSnapshot struct {
	Room      Room       `json:"room"`
	Questions []Question `json:"questions"`
}

// AuthorFromUser はユーザー情報から投稿者情報を作ります
func AuthorFromUser(u User) Author {
	return Author{Name: u.Name, Avatar: u.Avatar}
}
