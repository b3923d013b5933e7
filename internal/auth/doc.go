// Package auth は外部IDプロバイダ（Google）とのやり取りを担当します
//
// Connector はOAuth 2.0 の認可コードをプロフィールに交換します。
// Client はブラウザ1つ分の認証状態を保持し、状態が変わるたびにリスナーへ通知します。
// TokenCodec はプロフィールを署名付きトークンにしてCookieに載せ、次のリクエストで
// 既存セッションとして復元できるようにします（サーバー側には保存しません）。
package auth
